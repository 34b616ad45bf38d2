package types

// Severity grades how disruptive a weather alert is expected to be.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// NotificationType identifies the producer category of a notification.
// The weather pipeline only writes NotificationWeather; the enumeration is
// open for other producers (advisories, festival alerts, manual replans).
type NotificationType string

const (
	NotificationWeather  NotificationType = "weather"
	NotificationAdvisory NotificationType = "advisory"
	NotificationReplan   NotificationType = "replan"
	NotificationFestival NotificationType = "festival"
)

// BudgetTier is the user-selected spending level for a trip.
type BudgetTier string

const (
	BudgetAffordable BudgetTier = "affordable"
	BudgetMidRange   BudgetTier = "mid-range"
	BudgetLuxury     BudgetTier = "luxury"
)

// TripType describes the style of a saved trip.
type TripType string

const (
	TripLeisure   TripType = "leisure"
	TripAdventure TripType = "adventure"
	TripCultural  TripType = "cultural"
	TripFamily    TripType = "family"
	TripRomantic  TripType = "romantic"
	TripBusiness  TripType = "business"
)
