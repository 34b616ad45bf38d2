package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripgenie/internal/types"
)

// --- Mock ---

type mockNotificationRepo struct {
	notifications []types.Notification
	listErr       error
	listLimit     int
	unread        int
	markedRead    []string
	markedAllFor  []string
	deleted       []string
	notFound      bool
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, _ string, limit int) ([]types.Notification, error) {
	m.listLimit = limit
	return m.notifications, m.listErr
}

func (m *mockNotificationRepo) UnreadCount(_ context.Context, _ string) (int, error) {
	return m.unread, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id string) error {
	if m.notFound {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	m.markedRead = append(m.markedRead, id)
	return nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) error {
	m.markedAllFor = append(m.markedAllFor, userID)
	return nil
}

func (m *mockNotificationRepo) Delete(_ context.Context, id string) error {
	if m.notFound {
		return types.NewAppError(types.ErrCodeNotFoundNotification, "notification not found", nil)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func newTestRouter(repo *mockNotificationRepo) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", NewNotificationHandler(repo, nil).Mount)
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestList(t *testing.T) {
	repo := &mockNotificationRepo{
		notifications: []types.Notification{
			{
				ID:          "notif_1",
				UserID:      "user_1",
				TripID:      "trip_1",
				Destination: "Porto",
				Severity:    types.SeverityWarning,
				Type:        types.NotificationWeather,
				CreatedAt:   time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC),
			},
		},
	}

	rec := doRequest(t, newTestRouter(repo), http.MethodGet, "/v1/users/user_1/notifications")
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body)

	var body struct {
		Data []types.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "notif_1", body.Data[0].ID)
	assert.Equal(t, types.SeverityWarning, body.Data[0].Severity)
}

func TestList_EmptyIsAnArrayNotNull(t *testing.T) {
	rec := doRequest(t, newTestRouter(&mockNotificationRepo{}), http.MethodGet, "/v1/users/user_1/notifications")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "[]", string(body.Data))
}

func TestList_LimitParameter(t *testing.T) {
	repo := &mockNotificationRepo{}
	h := newTestRouter(repo)

	rec := doRequest(t, h, http.MethodGet, "/v1/users/user_1/notifications?limit=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, repo.listLimit)

	rec = doRequest(t, h, http.MethodGet, "/v1/users/user_1/notifications?limit=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxPageSize, repo.listLimit, "oversized limit must be capped")

	rec = doRequest(t, h, http.MethodGet, "/v1/users/user_1/notifications?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "non-numeric limit must be rejected")
}

func TestUnreadCount(t *testing.T) {
	repo := &mockNotificationRepo{unread: 3}

	rec := doRequest(t, newTestRouter(repo), http.MethodGet, "/v1/users/user_1/notifications/unread-count")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data UnreadCountResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.Count)
}

func TestMarkRead(t *testing.T) {
	repo := &mockNotificationRepo{}

	rec := doRequest(t, newTestRouter(repo), http.MethodPost, "/v1/notifications/notif_1/read")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"notif_1"}, repo.markedRead)
}

func TestMarkRead_NotFound(t *testing.T) {
	repo := &mockNotificationRepo{notFound: true}

	rec := doRequest(t, newTestRouter(repo), http.MethodPost, "/v1/notifications/notif_x/read")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(types.ErrCodeNotFoundNotification), body.Error.Code)
}

func TestMarkAllRead(t *testing.T) {
	repo := &mockNotificationRepo{}

	rec := doRequest(t, newTestRouter(repo), http.MethodPost, "/v1/users/user_1/notifications/read-all")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"user_1"}, repo.markedAllFor)
}

func TestDelete(t *testing.T) {
	repo := &mockNotificationRepo{}

	rec := doRequest(t, newTestRouter(repo), http.MethodDelete, "/v1/notifications/notif_1")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"notif_1"}, repo.deleted)
}
