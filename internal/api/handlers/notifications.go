// Package handlers contains the HTTP handler implementations for the
// TripGenie notification read API. The pipeline writes notifications; this
// surface lets the frontend list, count, acknowledge, and dismiss them.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tripgenie/internal/core"
	"tripgenie/internal/types"
)

// NotificationRepo defines the data access contract for the notification
// handler. Mirrors the db.NotificationRepository methods this surface uses.
type NotificationRepo interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]types.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, id string) error
}

// maxPageSize caps the list endpoint's limit parameter.
const maxPageSize = 200

// UnreadCountResponse is the body for GET .../notifications/unread-count.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// NotificationHandler serves the notification read API.
type NotificationHandler struct {
	repo   NotificationRepo
	logger *slog.Logger
}

// NewNotificationHandler creates a NotificationHandler.
func NewNotificationHandler(repo NotificationRepo, logger *slog.Logger) *NotificationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationHandler{
		repo:   repo,
		logger: logger,
	}
}

// Mount registers the notification routes on the given router.
func (h *NotificationHandler) Mount(r chi.Router) {
	r.Route("/users/{userID}/notifications", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllRead)
	})
	r.Route("/notifications/{notificationID}", func(r chi.Router) {
		r.Post("/read", h.MarkRead)
		r.Delete("/", h.Delete)
	})
}

// List handles GET /v1/users/{userID}/notifications.
// Supports an optional ?limit= query parameter.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user id is required", nil))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "limit must be a positive integer", err))
			return
		}
		limit = parsed
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}

	notifications, err := h.repo.ListByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list notifications", "user_id", userID, "error", err)
		core.Error(w, r, err)
		return
	}
	if notifications == nil {
		notifications = []types.Notification{}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: notifications})
}

// UnreadCount handles GET /v1/users/{userID}/notifications/unread-count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user id is required", nil))
		return
	}

	count, err := h.repo.UnreadCount(r.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to count unread notifications", "user_id", userID, "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: UnreadCountResponse{Count: count}})
}

// MarkAllRead handles POST /v1/users/{userID}/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user id is required", nil))
		return
	}

	if err := h.repo.MarkAllRead(r.Context(), userID); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to mark all notifications read", "user_id", userID, "error", err)
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkRead handles POST /v1/notifications/{notificationID}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "notification id is required", nil))
		return
	}

	if err := h.repo.MarkRead(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /v1/notifications/{notificationID}.
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "notificationID")
	if id == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "notification id is required", nil))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
