package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tripgenie/internal/types"
)

// PlannerClientConfig holds the configuration for creating a PlannerClient.
type PlannerClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// PlannerClient talks to the external LLM planning agent. The agent serves
// two roles with completely different payloads, fallbacks, and downstream
// effects, so they are surfaced as two distinct methods (Query and Replan)
// rather than one generic "call the model" entry point.
type PlannerClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewPlannerClient creates a new PlannerClient. LLM calls are slow; the
// httpClient timeout should be generous (30s) but still bounded.
func NewPlannerClient(httpClient *http.Client, cfg PlannerClientConfig) *PlannerClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"planner",
		// Single attempt: both callers have their own failure fallback and
		// must never block a scheduler run on LLM retries.
		RetryPolicy{MaxRetries: 0, MinWait: 500 * time.Millisecond, MaxWait: time.Second},
		"TripGenie/1.0",
	)

	return &PlannerClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Query sends a free-form question to the agent's /query endpoint and
// returns the answer text. Used by the alert message generator.
func (c *PlannerClient) Query(ctx context.Context, question string) (string, error) {
	body, err := json.Marshal(map[string]string{"question": question})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal query payload", err)
	}

	resp, err := c.post(ctx, "/query", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamPlanner,
			fmt.Sprintf("planner query returned status %d", resp.StatusCode),
			nil,
		)
	}

	var out struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamPlanner, "failed to decode planner query response", err)
	}

	return out.Answer, nil
}

// ReplanRequest is the trip snapshot sent to the agent's /replan endpoint.
// Field names match the wire format the agent expects.
type ReplanRequest struct {
	UserID      string             `json:"userId"`
	TripID      string             `json:"tripId"`
	Destination string             `json:"destination"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     time.Time          `json:"endDate"`
	Guests      int                `json:"guests"`
	Budget      types.BudgetTier   `json:"budget"`
	TripType    types.TripType     `json:"tripType"`
	AIResponse  string             `json:"aiResponse"`
	Alert       types.WeatherAlert `json:"alert"`
}

// Replan asks the agent to produce a revised itinerary for a trip hit by a
// critical weather alert. Returns the replanned itinerary text; an empty
// string means the agent declined to produce one.
func (c *PlannerClient) Replan(ctx context.Context, req ReplanRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal replan payload", err)
	}

	resp, err := c.post(ctx, "/replan", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamPlanner,
			fmt.Sprintf("planner replan returned status %d", resp.StatusCode),
			nil,
		)
	}

	var out struct {
		ReplannedItinerary string `json:"replannedItinerary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamPlanner, "failed to decode planner replan response", err)
	}

	return out.ReplannedItinerary, nil
}

func (c *PlannerClient) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create planner request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPlanner, "planner request failed", err)
	}
	return resp, nil
}
