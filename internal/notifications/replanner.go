package notifications

import (
	"context"
	"log/slog"

	"tripgenie/internal/external"
	"tripgenie/internal/types"
)

// ReplanClient invokes the planning agent's replan endpoint. Implemented by
// external.PlannerClient.
type ReplanClient interface {
	Replan(ctx context.Context, req external.ReplanRequest) (string, error)
}

// Replanner asks the planning agent for a revised itinerary when a critical
// alert hits a trip. Single attempt; a failure is logged and reported as "no
// replan produced" so notification and email delivery, which have already
// completed, are unaffected.
type Replanner struct {
	client ReplanClient
	logger *slog.Logger
}

// NewReplanner creates a Replanner over the given planning agent client.
func NewReplanner(client ReplanClient, logger *slog.Logger) *Replanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replanner{
		client: client,
		logger: logger,
	}
}

// Replan sends the trip snapshot plus the alert to the planning agent and
// returns the new itinerary text. Returns empty when the call fails or the
// agent produced nothing.
func (r *Replanner) Replan(ctx context.Context, trip types.Trip, user types.User, alert types.WeatherAlert) (string, error) {
	itinerary, err := r.client.Replan(ctx, external.ReplanRequest{
		UserID:      user.ID,
		TripID:      trip.ID,
		Destination: trip.Destination,
		StartDate:   trip.StartDate,
		EndDate:     trip.EndDate,
		Guests:      trip.Guests,
		Budget:      trip.Budget,
		TripType:    trip.TripType,
		AIResponse:  trip.AIResponse,
		Alert:       alert,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "replan agent failed",
			"trip_id", trip.ID,
			"destination", trip.Destination,
			"error", err,
		)
		return "", err
	}
	return itinerary, nil
}
