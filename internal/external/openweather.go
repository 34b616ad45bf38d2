package external

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripgenie/internal/types"
)

// openWeatherAPIBase is the default OpenWeather API base URL.
// Overridable in tests via OpenWeatherClientConfig.BaseURL.
const openWeatherAPIBase = "https://api.openweathermap.org"

// OpenWeatherClientConfig holds the configuration for creating an
// OpenWeatherClient.
type OpenWeatherClientConfig struct {
	APIKey  string
	BaseURL string // Override for testing; defaults to openWeatherAPIBase
	Logger  *slog.Logger
}

// OpenWeatherClient calls the OpenWeather direct-geocoding and 5-day
// forecast endpoints through BaseClient, so weather lookups inherit the
// platform's circuit breaker and retry behavior.
type OpenWeatherClient struct {
	base    *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewOpenWeatherClient creates a new OpenWeatherClient. The httpClient
// timeout bounds each call so a stalled provider cannot hang a scheduler run.
func NewOpenWeatherClient(httpClient *http.Client, cfg OpenWeatherClientConfig) *OpenWeatherClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openWeatherAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"openweather",
		DefaultRetryPolicy(),
		"TripGenie/1.0",
	)

	return &OpenWeatherClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// GeoPoint is a resolved geocoding result.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocode resolves a free-text place name to coordinates. The query string
// is used verbatim, matching how users typed their destination. Returns
// (nil, nil) when the provider finds no match; an unresolvable destination
// is not an error.
func (c *OpenWeatherClient) Geocode(ctx context.Context, query string) (*GeoPoint, error) {
	reqURL := fmt.Sprintf("%s/geo/1.0/direct?q=%s&limit=1&appid=%s",
		c.baseURL, url.QueryEscape(query), c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create geocoding request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "geocoding request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("geocoding returned status %d", resp.StatusCode),
			nil,
		)
	}

	var results []GeoPoint
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode geocoding response", err)
	}

	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// owmForecastResponse mirrors the subset of the OpenWeather /data/2.5/forecast
// payload the pipeline consumes.
type owmForecastResponse struct {
	List []struct {
		Dt      int64 `json:"dt"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
}

// Forecast fetches the 5-day/3-hour forecast for the given coordinates in
// metric units and normalizes it to the domain ForecastPoint shape, in the
// provider's original order.
func (c *OpenWeatherClient) Forecast(ctx context.Context, lat, lon float64) ([]types.ForecastPoint, error) {
	reqURL := fmt.Sprintf("%s/data/2.5/forecast?lat=%f&lon=%f&appid=%s&units=metric",
		c.baseURL, lat, lon, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "forecast request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("forecast returned status %d", resp.StatusCode),
			nil,
		)
	}

	var payload owmForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode forecast response", err)
	}

	points := make([]types.ForecastPoint, 0, len(payload.List))
	for _, item := range payload.List {
		p := types.ForecastPoint{
			Timestamp:    time.Unix(item.Dt, 0),
			TemperatureC: item.Main.Temp,
			WindSpeedMS:  item.Wind.Speed,
		}
		if len(item.Weather) > 0 {
			p.Category = item.Weather[0].Main
			p.Condition = item.Weather[0].Description
		}
		points = append(points, p)
	}

	return points, nil
}
