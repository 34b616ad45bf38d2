package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"tripgenie/internal/notifications"
	"tripgenie/internal/types"
)

// --- Fixtures ---

var testNow = time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func rainPoint() types.ForecastPoint {
	return types.ForecastPoint{Category: "Rain", Condition: "light rain", TemperatureC: 14, WindSpeedMS: 6}
}

func stormPoint() types.ForecastPoint {
	return types.ForecastPoint{Category: "Thunderstorm", Condition: "thunderstorm", TemperatureC: 20, WindSpeedMS: 17}
}

func userWithTrip(userID string, trip types.Trip) types.User {
	trip.UserID = userID
	return types.User{
		ID:    userID,
		Name:  "Ada",
		Email: userID + "@example.com",
		Trips: []types.Trip{trip},
	}
}

// --- Mocks ---

type replanApplyCall struct {
	UserID    string
	TripID    string
	Itinerary string
}

type mockTripStore struct {
	users     []types.User
	listErr   error
	listCalls int
	applied   []replanApplyCall
	applyErr  error
}

func (m *mockTripStore) ListUsersWithUpcomingTrips(_ context.Context, _, _ time.Time) ([]types.User, error) {
	m.listCalls++
	return m.users, m.listErr
}

func (m *mockTripStore) ApplyReplan(_ context.Context, userID, tripID, newItinerary string) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, replanApplyCall{UserID: userID, TripID: tripID, Itinerary: newItinerary})
	return nil
}

type mockNotificationStore struct {
	exists    bool
	existsErr error
	createOK  bool
	createErr error
	created   []types.Notification
	emailSent []string
	replanned map[string]string
}

func newMockNotificationStore() *mockNotificationStore {
	return &mockNotificationStore{
		createOK:  true,
		replanned: make(map[string]string),
	}
}

func (m *mockNotificationStore) ExistsForDay(_ context.Context, _ string, _ time.Time) (bool, error) {
	return m.exists, m.existsErr
}

func (m *mockNotificationStore) Create(_ context.Context, n *types.Notification, _ time.Time) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	if !m.createOK {
		return false, nil
	}
	if n.ID == "" {
		n.ID = fmt.Sprintf("notif_test_%d", len(m.created)+1)
	}
	m.created = append(m.created, *n)
	return true, nil
}

func (m *mockNotificationStore) MarkEmailSent(_ context.Context, id string) error {
	m.emailSent = append(m.emailSent, id)
	return nil
}

func (m *mockNotificationStore) SetReplannedItinerary(_ context.Context, id, itinerary string) error {
	m.replanned[id] = itinerary
	return nil
}

type mockForecastGateway struct {
	points map[string][]types.ForecastPoint
	errs   map[string]error
	calls  []string
}

func (m *mockForecastGateway) FetchForecast(_ context.Context, destination string, _ time.Time) ([]types.ForecastPoint, error) {
	m.calls = append(m.calls, destination)
	if err := m.errs[destination]; err != nil {
		return nil, err
	}
	return m.points[destination], nil
}

type mockGenerator struct {
	message string
}

func (m *mockGenerator) Generate(_ context.Context, _ string, _ types.WeatherAlert) string {
	return m.message
}

type mockReplanner struct {
	itinerary string
	err       error
	calls     int
}

func (m *mockReplanner) Replan(_ context.Context, _ types.Trip, _ types.User, _ types.WeatherAlert) (string, error) {
	m.calls++
	return m.itinerary, m.err
}

type mockEmailDispatcher struct {
	ok    bool
	calls []string // notification IDs
}

func (m *mockEmailDispatcher) SendAlert(_ context.Context, _, _ string, n *types.Notification) bool {
	m.calls = append(m.calls, n.ID)
	return m.ok
}

type mockRunLock struct {
	acquired bool
	err      error
	released int
}

func (m *mockRunLock) Acquire(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return m.acquired, m.err
}

func (m *mockRunLock) Release(_ context.Context, _, _ string) error {
	m.released++
	return nil
}

type historyFinishCall struct {
	ID     int64
	Status string
	Items  int
}

type mockRunHistory struct {
	startErr error
	nextID   int64
	starts   int
	finished []historyFinishCall
}

func (m *mockRunHistory) Start(_ context.Context, _ string) (int64, error) {
	m.starts++
	if m.startErr != nil {
		return 0, m.startErr
	}
	m.nextID++
	return m.nextID, nil
}

func (m *mockRunHistory) Finish(_ context.Context, id int64, status string, items int, _ error) error {
	m.finished = append(m.finished, historyFinishCall{ID: id, Status: status, Items: items})
	return nil
}

type mockMetrics struct {
	tripsEvaluated int
	notifications  []types.Severity
	emails         []notifications.MetricResult
	replans        []notifications.MetricResult
	durations      int
}

func (m *mockMetrics) RecordTripEvaluated(context.Context) { m.tripsEvaluated++ }

func (m *mockMetrics) RecordNotification(_ context.Context, severity types.Severity) {
	m.notifications = append(m.notifications, severity)
}

func (m *mockMetrics) RecordEmail(_ context.Context, result notifications.MetricResult) {
	m.emails = append(m.emails, result)
}

func (m *mockMetrics) RecordReplan(_ context.Context, result notifications.MetricResult) {
	m.replans = append(m.replans, result)
}

func (m *mockMetrics) RecordRunDuration(context.Context, time.Duration) { m.durations++ }

// testDeps bundles the mock set a monitor test starts from.
type testDeps struct {
	trips   *mockTripStore
	notifs  *mockNotificationStore
	gateway *mockForecastGateway
	replan  *mockReplanner
	email   *mockEmailDispatcher
}

func newTestDeps() *testDeps {
	return &testDeps{
		trips:   &mockTripStore{},
		notifs:  newMockNotificationStore(),
		gateway: &mockForecastGateway{points: map[string][]types.ForecastPoint{}, errs: map[string]error{}},
		replan:  &mockReplanner{itinerary: "revised itinerary"},
		email:   &mockEmailDispatcher{ok: true},
	}
}

func (d *testDeps) monitor() *TripMonitor {
	return NewTripMonitor(TripMonitorConfig{
		Trips:         d.trips,
		Notifications: d.notifs,
		Forecasts:     d.gateway,
		Generator:     &mockGenerator{message: "generated alert text"},
		Replanner:     d.replan,
		Email:         d.email,
		Clock:         fixedClock{now: testNow},
		WindowDays:    30,
	})
}

// --- Tests ---

func TestRun_WarningCreatesNotificationAndEmail(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{
			ID:          "trip_1",
			Destination: "Porto",
			StartDate:   testNow.AddDate(0, 0, 4),
		}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
	if len(d.notifs.created) != 1 {
		t.Fatalf("created %d notifications, want 1", len(d.notifs.created))
	}

	n := d.notifs.created[0]
	if n.UserID != "user_1" || n.TripID != "trip_1" || n.Destination != "Porto" {
		t.Errorf("notification identity wrong: %+v", n)
	}
	if n.Severity != types.SeverityWarning {
		t.Errorf("severity = %q, want warning", n.Severity)
	}
	if n.Type != types.NotificationWeather {
		t.Errorf("type = %q, want weather", n.Type)
	}
	if n.Message != "generated alert text" {
		t.Errorf("message = %q", n.Message)
	}

	if len(d.email.calls) != 1 || d.email.calls[0] != n.ID {
		t.Errorf("email calls = %v, want the created notification", d.email.calls)
	}
	if len(d.notifs.emailSent) != 1 || d.notifs.emailSent[0] != n.ID {
		t.Errorf("email_sent marks = %v", d.notifs.emailSent)
	}
	if d.replan.calls != 0 {
		t.Errorf("warning severity must not replan, got %d calls", d.replan.calls)
	}
}

func TestRun_DedupShortCircuitsBeforeExternalCalls(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}
	d.notifs.exists = true

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 0 {
		t.Fatalf("notified = %d, want 0", notified)
	}
	if len(d.gateway.calls) != 0 {
		t.Errorf("forecast fetched despite same-day dedup: %v", d.gateway.calls)
	}
	if len(d.email.calls) != 0 {
		t.Errorf("email sent despite same-day dedup: %v", d.email.calls)
	}
}

func TestRun_CriticalTriggersReplan(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{
			ID:          "trip_1",
			Destination: "Chamonix",
			// Far outside the 7-day warning lead time; critical ignores it.
			StartDate: testNow.AddDate(0, 0, 20),
		}),
	}
	d.gateway.points["Chamonix"] = []types.ForecastPoint{stormPoint()}

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
	if d.replan.calls != 1 {
		t.Fatalf("replan calls = %d, want 1", d.replan.calls)
	}

	notifID := d.notifs.created[0].ID
	if d.notifs.replanned[notifID] != "revised itinerary" {
		t.Errorf("replanned itinerary not stored on notification: %v", d.notifs.replanned)
	}
	if len(d.trips.applied) != 1 {
		t.Fatalf("ApplyReplan calls = %d, want 1", len(d.trips.applied))
	}
	applied := d.trips.applied[0]
	if applied.UserID != "user_1" || applied.TripID != "trip_1" || applied.Itinerary != "revised itinerary" {
		t.Errorf("ApplyReplan call wrong: %+v", applied)
	}
}

func TestRun_ReplanFailureKeepsNotification(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Chamonix", StartDate: testNow.AddDate(0, 0, 3)}),
	}
	d.gateway.points["Chamonix"] = []types.ForecastPoint{stormPoint()}
	d.replan.err = errors.New("agent down")

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1 despite replan failure", notified)
	}
	if len(d.notifs.emailSent) != 1 {
		t.Errorf("email delivery should be unaffected by replan failure")
	}
	if len(d.notifs.replanned) != 0 {
		t.Errorf("no itinerary should be stored after a failed replan: %v", d.notifs.replanned)
	}
	if len(d.trips.applied) != 0 {
		t.Errorf("no replan should be applied after a failed replan: %v", d.trips.applied)
	}
}

func TestRun_EligibilityWindowEdges(t *testing.T) {
	d := newTestDeps()
	user := types.User{
		ID:    "user_1",
		Email: "user_1@example.com",
		Trips: []types.Trip{
			{ID: "trip_past", UserID: "user_1", Destination: "Lima", StartDate: testNow.AddDate(0, 0, -1)},
			{ID: "trip_edge", UserID: "user_1", Destination: "Quito", StartDate: testNow.AddDate(0, 0, 30)},
			{ID: "trip_far", UserID: "user_1", Destination: "Bogota", StartDate: testNow.AddDate(0, 0, 31)},
		},
	}
	d.trips.users = []types.User{user}
	for _, dest := range []string{"Lima", "Quito", "Bogota"} {
		d.gateway.points[dest] = []types.ForecastPoint{stormPoint()}
	}

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1 (only the day-30 trip)", notified)
	}
	if len(d.gateway.calls) != 1 || d.gateway.calls[0] != "Quito" {
		t.Errorf("gateway calls = %v, want only Quito", d.gateway.calls)
	}
}

func TestRun_CreateConflictSkipsEmail(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}
	d.notifs.createOK = false

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 0 {
		t.Fatalf("notified = %d, want 0 on insert conflict", notified)
	}
	if len(d.email.calls) != 0 {
		t.Errorf("no email should be sent when the insert lost the race")
	}
}

func TestRun_EmailFailureLeavesEmailSentUnset(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}
	d.email.ok = false

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1 (the record exists even if email failed)", notified)
	}
	if len(d.notifs.emailSent) != 0 {
		t.Errorf("email_sent must stay unset on failed delivery: %v", d.notifs.emailSent)
	}
}

func TestRun_WarningOutsideLeadTimeSkipped(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 10)}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 0 {
		t.Fatalf("notified = %d, want 0 (warning 10 days out)", notified)
	}
	if len(d.gateway.calls) != 1 {
		t.Errorf("forecast should still be fetched before the policy gate")
	}
}

func TestRun_PerTripFailureIsolation(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Broken", StartDate: testNow.AddDate(0, 0, 2)}),
		userWithTrip("user_2", types.Trip{ID: "trip_2", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}
	d.gateway.errs["Broken"] = errors.New("provider exploded")
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}

	notified, err := d.monitor().Run(context.Background())
	if err != nil {
		t.Fatalf("one trip's failure must not fail the run: %v", err)
	}
	if notified != 1 {
		t.Fatalf("notified = %d, want 1", notified)
	}
	if d.notifs.created[0].TripID != "trip_2" {
		t.Errorf("wrong trip notified: %+v", d.notifs.created[0])
	}
}

func TestRun_LockHeldElsewhereSkips(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}

	lock := &mockRunLock{acquired: false}
	m := NewTripMonitor(TripMonitorConfig{
		Trips:         d.trips,
		Notifications: d.notifs,
		Forecasts:     d.gateway,
		Generator:     &mockGenerator{message: "m"},
		Replanner:     d.replan,
		Email:         d.email,
		Lock:          lock,
		Clock:         fixedClock{now: testNow},
	})

	notified, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified != 0 {
		t.Fatalf("notified = %d, want 0 when the lock is held", notified)
	}
	if d.trips.listCalls != 0 {
		t.Errorf("no work should happen without the lock")
	}
	if lock.released != 0 {
		t.Errorf("a lock that was never acquired must not be released")
	}
}

func TestRun_LockAcquiredAndReleased(t *testing.T) {
	d := newTestDeps()
	lock := &mockRunLock{acquired: true}
	m := NewTripMonitor(TripMonitorConfig{
		Trips:         d.trips,
		Notifications: d.notifs,
		Forecasts:     d.gateway,
		Generator:     &mockGenerator{message: "m"},
		Replanner:     d.replan,
		Email:         d.email,
		Lock:          lock,
		Clock:         fixedClock{now: testNow},
	})

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lock.released != 1 {
		t.Errorf("lock released %d times, want 1", lock.released)
	}
}

func TestRun_HistoryStartFailureOnlySkipsThatRun(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}

	history := &mockRunHistory{startErr: errors.New("history table down")}
	m := NewTripMonitor(TripMonitorConfig{
		Trips:         d.trips,
		Notifications: d.notifs,
		Forecasts:     d.gateway,
		Generator:     &mockGenerator{message: "m"},
		Replanner:     d.replan,
		Email:         d.email,
		History:       history,
		Clock:         fixedClock{now: testNow},
		WindowDays:    30,
	})

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(history.finished) != 0 {
		t.Fatalf("no finish should be recorded after a failed start: %+v", history.finished)
	}

	// History recovers; the next run must record normally.
	history.startErr = nil
	d.notifs.exists = true // dedup: second run creates nothing

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if history.starts != 2 {
		t.Errorf("history starts = %d, want 2 (one per run)", history.starts)
	}
	if len(history.finished) != 1 {
		t.Fatalf("second run did not record a finish: %+v", history.finished)
	}
	got := history.finished[0]
	if got.ID != 1 || got.Status != "success" || got.Items != 0 {
		t.Errorf("finish call = %+v", got)
	}
}

func TestRun_RecordsTripEvaluatedPerTrip(t *testing.T) {
	d := newTestDeps()
	d.trips.users = []types.User{
		userWithTrip("user_1", types.Trip{ID: "trip_1", Destination: "Porto", StartDate: testNow.AddDate(0, 0, 4)}),
		// Outside the window; still counts as evaluated.
		userWithTrip("user_2", types.Trip{ID: "trip_2", Destination: "Lima", StartDate: testNow.AddDate(0, 0, -1)}),
	}
	d.gateway.points["Porto"] = []types.ForecastPoint{rainPoint()}

	metrics := &mockMetrics{}
	m := NewTripMonitor(TripMonitorConfig{
		Trips:         d.trips,
		Notifications: d.notifs,
		Forecasts:     d.gateway,
		Generator:     &mockGenerator{message: "m"},
		Replanner:     d.replan,
		Email:         d.email,
		Metrics:       metrics,
		Clock:         fixedClock{now: testNow},
		WindowDays:    30,
	})

	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if metrics.tripsEvaluated != 2 {
		t.Errorf("trips evaluated = %d, want 2", metrics.tripsEvaluated)
	}
	if len(metrics.notifications) != 1 || metrics.notifications[0] != types.SeverityWarning {
		t.Errorf("notification metrics = %v", metrics.notifications)
	}
	if len(metrics.emails) != 1 || metrics.emails[0] != notifications.MetricSuccess {
		t.Errorf("email metrics = %v", metrics.emails)
	}
	if metrics.durations != 1 {
		t.Errorf("run duration recorded %d times, want 1", metrics.durations)
	}
}

func TestRun_EligibilityQueryFailureIsFatal(t *testing.T) {
	d := newTestDeps()
	d.trips.listErr = errors.New("db down")

	if _, err := d.monitor().Run(context.Background()); err == nil {
		t.Fatal("expected the run to fail when the eligibility query fails")
	}
}

func TestDateOnly(t *testing.T) {
	late := time.Date(2026, 8, 29, 23, 59, 59, 0, time.UTC)
	early := time.Date(2026, 8, 29, 0, 0, 1, 0, time.UTC)
	if !dateOnly(late).Equal(dateOnly(early)) {
		t.Error("same calendar day must compare equal regardless of time of day")
	}
	next := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if !dateOnly(late).Before(dateOnly(next)) {
		t.Error("calendar day ordering broken")
	}
}
