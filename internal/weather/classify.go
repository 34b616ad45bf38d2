package weather

import (
	"strings"

	"tripgenie/internal/types"
)

// criticalWindSpeedMS is the wind speed above which any forecast point is
// graded critical regardless of its condition category. Units: m/s.
const criticalWindSpeedMS = 15.0

// Condition categories as reported by the provider's coarse "main" field.
var (
	severeCategories  = []string{"Thunderstorm", "Snow", "Extreme", "Tornado", "Squall"}
	warningCategories = []string{"Rain", "Drizzle", "Fog", "Haze"}
)

// Classify scans forecast points in order and returns the FIRST matching
// alert, or nil when no point warrants one. First-match-wins: an early
// warning-grade point shadows a later critical one. This favors the
// earliest-in-time condition; picking the worst severity across all points
// was considered and deliberately not adopted (see DESIGN.md).
//
// Rules per point:
//   - category is severe, or wind speed > 15 m/s  => critical
//   - category is a warning category              => warning
//   - otherwise                                   => continue to next point
func Classify(points []types.ForecastPoint) *types.WeatherAlert {
	for _, p := range points {
		if matchesAny(p.Category, severeCategories) || p.WindSpeedMS > criticalWindSpeedMS {
			return &types.WeatherAlert{
				Severity:     types.SeverityCritical,
				Condition:    p.Condition,
				TemperatureC: p.TemperatureC,
				WindSpeedMS:  p.WindSpeedMS,
			}
		}
		if matchesAny(p.Category, warningCategories) {
			return &types.WeatherAlert{
				Severity:     types.SeverityWarning,
				Condition:    p.Condition,
				TemperatureC: p.TemperatureC,
				WindSpeedMS:  p.WindSpeedMS,
			}
		}
	}
	return nil
}

// matchesAny reports whether the category contains any of the given names.
// Containment rather than equality tolerates compound provider categories.
func matchesAny(category string, names []string) bool {
	for _, name := range names {
		if strings.Contains(category, name) {
			return true
		}
	}
	return false
}
