// Package types defines the shared domain model for the TripGenie alerting
// platform: users and their saved trips, the notifications the weather
// pipeline produces, and the transient forecast/alert values that flow
// between the pipeline stages.
package types

import "time"

// User is an account holder. Trips carries the user's full saved-trip list
// when hydrated by the Trip Store query.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Trips     []Trip    `json:"trips,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Trip is a saved trip in a user's watchlist. The pipeline only mutates the
// itinerary fields (AIResponse, PreviousAIResponse, IsReplanned), and only
// through the replanning step; everything else is owned by the watchlist API.
type Trip struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Destination string     `json:"destination"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Guests      int        `json:"guests"`
	Budget      BudgetTier `json:"budget"`
	TripType    TripType   `json:"trip_type"`

	// AIResponse is the last-known itinerary text (may be empty).
	// PreviousAIResponse is populated only when a replan overwrites AIResponse.
	AIResponse         string `json:"ai_response"`
	PreviousAIResponse string `json:"previous_ai_response,omitempty"`
	IsReplanned        bool   `json:"is_replanned"`

	AddedAt time.Time `json:"added_at"`
}

// Notification is one alert record produced by the pipeline. At most one
// notification exists per (TripID, calendar day); the day is captured at
// creation time and enforced by a unique index.
//
// Destination is a point-in-time snapshot of the trip's destination, not a
// live reference; the trip record may be edited after the alert is created.
type Notification struct {
	ID                 string           `json:"id"`
	UserID             string           `json:"user_id"`
	TripID             string           `json:"trip_id"`
	Destination        string           `json:"destination"`
	Message            string           `json:"message"`
	Severity           Severity         `json:"severity"`
	Type               NotificationType `json:"type"`
	EmailSent          bool             `json:"email_sent"`
	ReplannedItinerary string           `json:"replanned_itinerary,omitempty"`
	IsRead             bool             `json:"is_read"`
	CreatedAt          time.Time        `json:"created_at"`
}

// ForecastPoint is one normalized entry from the upstream forecast feed.
// Order matters: points are kept in the provider's chronological order and
// the classifier returns the first match.
type ForecastPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Category     string    `json:"category"`  // coarse condition group, e.g. "Rain", "Thunderstorm"
	Condition    string    `json:"condition"` // human-readable description, e.g. "light rain"
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
}

// WeatherAlert is the transient classification result for one trip. It is
// never persisted as its own entity; its fields are embedded into the
// generated message, the replan request payload, and the notification row.
//
// The JSON field names match the wire format the replanning agent expects.
type WeatherAlert struct {
	Severity     Severity `json:"severity"`
	Condition    string   `json:"condition"`
	TemperatureC float64  `json:"temp"`
	WindSpeedMS  float64  `json:"windSpeed"`
}
