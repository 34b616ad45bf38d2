package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tripgenie/internal/types"
)

// NotificationRepository provides data access for the notifications table.
// It is the pipeline's Notification Store and the system's source of
// idempotence: the notified_on column plus the (trip_id, notified_on) unique
// index guarantee at most one notification per trip per calendar day, even
// when trips are evaluated concurrently.
type NotificationRepository struct {
	db DBTX
}

// NewNotificationRepository creates a new NotificationRepository backed by
// the given database connection (pool or transaction).
func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ExistsForDay reports whether a notification already exists for the trip on
// the given calendar day. The scheduler uses this as a cheap short-circuit
// before making any external calls; Create re-verifies via the unique index.
func (r *NotificationRepository) ExistsForDay(ctx context.Context, tripID string, day time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notifications WHERE trip_id = $1 AND notified_on = $2::date
		 )`,
		tripID,
		day,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check notification dedup", err)
	}
	return exists, nil
}

// Create inserts a new notification record keyed to the given calendar day.
// If the ID is empty a prefixed UUID is generated. Returns false when a
// same-day notification for the trip already exists (the unique index makes
// the check-and-insert atomic); the caller should treat that as "already
// handled today" and stop.
func (r *NotificationRepository) Create(ctx context.Context, n *types.Notification, day time.Time) (bool, error) {
	if n.ID == "" {
		n.ID = fmt.Sprintf("notif_%s", uuid.NewString())
	}

	err := r.db.QueryRow(ctx,
		`INSERT INTO notifications
		 (id, user_id, trip_id, destination, message, severity, type,
		  email_sent, replanned_itinerary, notified_on, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::date, COALESCE($11, NOW()))
		 ON CONFLICT (trip_id, notified_on) DO NOTHING
		 RETURNING created_at`,
		n.ID,
		n.UserID,
		n.TripID,
		n.Destination,
		n.Message,
		string(n.Severity),
		string(n.Type),
		n.EmailSent,
		nilIfEmpty(n.ReplannedItinerary),
		day,
		nilIfZeroTime(n.CreatedAt),
	).Scan(&n.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict: another evaluation already created today's record.
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to create notification", err)
	}
	return true, nil
}

// MarkEmailSent sets email_sent on a notification after the provider has
// confirmed acceptance. Never called on failed deliveries.
func (r *NotificationRepository) MarkEmailSent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET email_sent = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark email sent", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// SetReplannedItinerary stores the replanned itinerary text produced for a
// critical alert.
func (r *NotificationRepository) SetReplannedItinerary(ctx context.Context, id, itinerary string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET replanned_itinerary = $2 WHERE id = $1`,
		id,
		itinerary,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to set replanned itinerary", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first. A limit of 0
// applies the default page size.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]types.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, trip_id, destination, message, severity, type,
		        email_sent, COALESCE(replanned_itinerary, ''), is_read, created_at
		 FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list notifications", err)
	}
	defer rows.Close()

	var results []types.Notification
	for rows.Next() {
		var n types.Notification
		if err := rows.Scan(
			&n.ID, &n.UserID, &n.TripID, &n.Destination, &n.Message,
			&n.Severity, &n.Type, &n.EmailSent, &n.ReplannedItinerary,
			&n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan notification row", err)
		}
		results = append(results, n)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating notification rows", err)
	}

	return results, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count unread notifications", err)
	}
	return count, nil
}

// MarkRead flags a single notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notification read", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}

// MarkAllRead flags all of a user's notifications as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`,
		userID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark notifications read", err)
	}
	return nil
}

// Delete removes a notification. This is the user-facing dismissal path; the
// pipeline itself never deletes records.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1`,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	return nil
}
