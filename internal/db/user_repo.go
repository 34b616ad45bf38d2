package db

import (
	"context"
	"time"

	"tripgenie/internal/types"
)

// UserRepository provides data access for the users and trips tables. It is
// the pipeline's Trip Store: it serves the coarse "users with upcoming trips"
// pre-filter query and applies replanned itineraries to trips.
type UserRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository backed by the given database
// connection (pool or transaction).
func NewUserRepository(db DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// ListUsersWithUpcomingTrips returns every user who has at least one trip
// whose start date falls in [from, to], with each matched user's FULL trip
// list hydrated. This is intentionally a coarse user-level pre-filter: the
// scheduler re-checks each trip's dates individually, since a matched user
// may also hold trips outside the window.
func (r *UserRepository) ListUsersWithUpcomingTrips(ctx context.Context, from, to time.Time) ([]types.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT u.id, u.name, u.email, u.created_at
		 FROM users u
		 JOIN trips t ON t.user_id = u.id
		 WHERE t.start_date >= $1 AND t.start_date <= $2
		 ORDER BY u.id`,
		from,
		to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query users with upcoming trips", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan user row", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating user rows", err)
	}

	for i := range users {
		trips, err := r.listTrips(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Trips = trips
	}

	return users, nil
}

// listTrips returns all trips for a user, oldest first.
func (r *UserRepository) listTrips(ctx context.Context, userID string) ([]types.Trip, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, destination, start_date, end_date, guests, budget,
		        trip_type, ai_response, COALESCE(previous_ai_response, ''),
		        is_replanned, added_at
		 FROM trips
		 WHERE user_id = $1
		 ORDER BY added_at`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query trips", err)
	}
	defer rows.Close()

	var trips []types.Trip
	for rows.Next() {
		var t types.Trip
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Destination, &t.StartDate, &t.EndDate,
			&t.Guests, &t.Budget, &t.TripType, &t.AIResponse,
			&t.PreviousAIResponse, &t.IsReplanned, &t.AddedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan trip row", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating trip rows", err)
	}

	return trips, nil
}

// ApplyReplan atomically shifts the trip's current itinerary into
// previous_ai_response, stores the new itinerary, and flags the trip as
// replanned. A single UPDATE keeps the old-value capture race-free.
//
// If the user or trip no longer exists the call is a silent no-op, matching
// the pipeline's missing-entity policy: the notification and email have
// already gone out by this point and must not be rolled back.
func (r *UserRepository) ApplyReplan(ctx context.Context, userID, tripID, newItinerary string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE trips
		 SET previous_ai_response = ai_response,
		     ai_response = $3,
		     is_replanned = TRUE
		 WHERE id = $2 AND user_id = $1`,
		userID,
		tripID,
		newItinerary,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply replan to trip", err)
	}
	return nil
}
