// Package notifications holds the decision and content side of the alerting
// pipeline: the severity-based notification policy, the LLM-backed alert
// message generator with its deterministic fallback, and pipeline telemetry.
package notifications

import (
	"time"

	"tripgenie/internal/types"
)

// warningLeadTimeDays is the inclusive lead-time threshold for warning-grade
// alerts: a warning only notifies when the trip starts within this many days.
const warningLeadTimeDays = 7.0

// ShouldNotify decides whether an alert warrants a notification.
//
//   - critical: always notify, regardless of lead time.
//   - warning:  notify only when days-until-trip <= 7. The difference is a
//     real-valued day count, not truncated, so 7.0 days passes and 7.0001
//     does not.
//   - info or no alert: never notify. Info is currently unreachable from the
//     classifier but remains a defined case for other producers.
func ShouldNotify(alert *types.WeatherAlert, tripStart, now time.Time) bool {
	if alert == nil {
		return false
	}

	switch alert.Severity {
	case types.SeverityCritical:
		return true
	case types.SeverityWarning:
		daysUntilTrip := tripStart.Sub(now).Hours() / 24
		return daysUntilTrip <= warningLeadTimeDays
	default:
		return false
	}
}
