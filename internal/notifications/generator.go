package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"tripgenie/internal/types"
)

// LLMQueryClient answers a free-form question. Implemented by
// external.PlannerClient.Query.
type LLMQueryClient interface {
	Query(ctx context.Context, question string) (string, error)
}

// promptTemplate is the fixed instruction sent to the language model. The
// alert's raw fields are embedded as JSON so the model sees exact values.
const promptTemplate = `You are TripGenie. Write a short, friendly travel alert (max 3 sentences) for a user who has a trip planned to %s.
Weather alert: %s.
Include: what the issue is, how it might affect their trip, and one practical tip. Be warm and helpful, not alarming.`

// Generator produces the user-facing alert message. The primary path asks
// the language model; any failure (transport error, non-success status,
// malformed or empty answer) falls back to a deterministic template. One
// attempt only, no retries: message generation must never fail and never
// stall a scheduler run.
type Generator struct {
	llm    LLMQueryClient
	logger *slog.Logger
}

// NewGenerator creates an alert message generator over the given LLM client.
func NewGenerator(llm LLMQueryClient, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:    llm,
		logger: logger,
	}
}

// Generate returns the alert message for a destination. The returned string
// is always non-empty.
func (g *Generator) Generate(ctx context.Context, destination string, alert types.WeatherAlert) string {
	alertJSON, err := json.Marshal(alert)
	if err != nil {
		// Marshalling a plain struct cannot realistically fail, but the
		// fallback contract holds regardless.
		return fallbackMessage(destination, alert)
	}

	question := fmt.Sprintf(promptTemplate, destination, alertJSON)

	answer, err := g.llm.Query(ctx, question)
	if err != nil {
		g.logger.WarnContext(ctx, "message generation fell back to template",
			"destination", destination,
			"error", err,
		)
		return fallbackMessage(destination, alert)
	}
	if answer == "" {
		g.logger.WarnContext(ctx, "message generation returned empty answer, using template",
			"destination", destination,
		)
		return fallbackMessage(destination, alert)
	}

	return answer
}

// fallbackMessage synthesizes a deterministic alert from the raw fields.
func fallbackMessage(destination string, alert types.WeatherAlert) string {
	return fmt.Sprintf(
		"Weather alert for %s: %s expected. Wind speeds of %.1f m/s. Consider checking your bookings.",
		destination, alert.Condition, alert.WindSpeedMS,
	)
}
