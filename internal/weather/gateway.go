// Package weather implements the forecast side of the alerting pipeline: a
// gateway that resolves a destination to a relevant slice of forecast points,
// and a rule-table classifier that grades those points into an alert.
package weather

import (
	"context"
	"log/slog"
	"time"

	"tripgenie/internal/external"
	"tripgenie/internal/types"
)

// Forecast window relative to the trip start, in days. Points from one day
// after the start back to five days before it are considered relevant,
// capturing both "already near" and "upcoming" conditions within the
// provider's 5-day horizon.
const (
	windowMinDays = -1.0
	windowMaxDays = 5.0
)

// GeocodingClient resolves free-text place names to coordinates.
// Implemented by external.OpenWeatherClient.
type GeocodingClient interface {
	// Geocode returns (nil, nil) when no match is found.
	Geocode(ctx context.Context, query string) (*external.GeoPoint, error)
}

// ForecastClient fetches a multi-day forecast for coordinates.
// Implemented by external.OpenWeatherClient.
type ForecastClient interface {
	Forecast(ctx context.Context, lat, lon float64) ([]types.ForecastPoint, error)
}

// Gateway fetches and filters forecast data for a trip destination. Provider
// failures are logged and swallowed: a forecast that cannot be fetched must
// never abort the scheduler loop for other trips, so the gateway degrades to
// "no data" instead of returning an error.
type Gateway struct {
	geocoder GeocodingClient
	forecast ForecastClient
	logger   *slog.Logger
}

// NewGateway creates a forecast gateway over the given provider clients.
func NewGateway(geocoder GeocodingClient, forecast ForecastClient, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		geocoder: geocoder,
		forecast: forecast,
		logger:   logger,
	}
}

// FetchForecast resolves the destination and returns the forecast points
// relevant to the trip start date, preserving provider order. It returns nil
// (no data, no error) when the destination cannot be geocoded or any
// provider call fails.
func (g *Gateway) FetchForecast(ctx context.Context, destination string, tripStart time.Time) ([]types.ForecastPoint, error) {
	point, err := g.geocoder.Geocode(ctx, destination)
	if err != nil {
		g.logger.ErrorContext(ctx, "geocoding failed",
			"destination", destination,
			"error", err,
		)
		return nil, nil
	}
	if point == nil {
		// Unresolvable destination silently yields no alert.
		g.logger.InfoContext(ctx, "destination not found by geocoder",
			"destination", destination,
		)
		return nil, nil
	}

	points, err := g.forecast.Forecast(ctx, point.Lat, point.Lon)
	if err != nil {
		g.logger.ErrorContext(ctx, "forecast fetch failed",
			"destination", destination,
			"error", err,
		)
		return nil, nil
	}

	return filterWindow(points, tripStart), nil
}

// filterWindow keeps points whose distance from the trip start falls inside
// [windowMinDays, windowMaxDays]. The difference is measured as
// (tripStart - point.Timestamp) in real-valued days.
func filterWindow(points []types.ForecastPoint, tripStart time.Time) []types.ForecastPoint {
	var relevant []types.ForecastPoint
	for _, p := range points {
		diffDays := tripStart.Sub(p.Timestamp).Hours() / 24
		if diffDays >= windowMinDays && diffDays <= windowMaxDays {
			relevant = append(relevant, p)
		}
	}
	return relevant
}
