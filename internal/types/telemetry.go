package types

// Telemetry metric names for CloudWatch. All components MUST use these
// constants so dashboards and alarms stay stable.
const (
	// Metric Names
	MetricTripEvaluated       = "TripEvaluated"
	MetricNotificationCreated = "NotificationCreated"
	MetricEmailAttempt        = "EmailAttempt"
	MetricReplanAttempt       = "ReplanAttempt"
	MetricRunDuration         = "SchedulerRunDuration"

	// Dimension Keys
	DimSeverity = "Severity"
	DimResult   = "Result"

	// Metric Namespace
	MetricNamespace = "TripGenie"
)
