// Package scheduler implements the daily weather notification run for the
// TripGenie platform. The TripMonitor walks every user with an upcoming
// trip, fetches and classifies forecast data per trip, applies the
// notification policy, persists a per-day deduplicated notification, emails
// the user, and triggers replanning for critical alerts.
//
// Every per-trip step is a potential early exit, and every per-trip failure
// is isolated: one trip's broken destination or flaky provider never stops
// the rest of the run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"tripgenie/internal/notifications"
	"tripgenie/internal/types"
	"tripgenie/internal/weather"
)

// RunLockID identifies the scheduler's run lock row. A single lock for the
// whole job: runs must never overlap, even across instances.
const RunLockID = "weather_notification_run"

// JobType is the job_history label for scheduler runs.
const JobType = "weather_notification_run"

// TripStore abstracts the user/trip data access the monitor needs.
// Implemented by db.UserRepository.
type TripStore interface {
	// ListUsersWithUpcomingTrips returns users having at least one trip
	// starting in [from, to], each with their full trip list hydrated.
	ListUsersWithUpcomingTrips(ctx context.Context, from, to time.Time) ([]types.User, error)
	// ApplyReplan atomically applies a replanned itinerary to a trip.
	// Silent no-op when the user or trip no longer exists.
	ApplyReplan(ctx context.Context, userID, tripID, newItinerary string) error
}

// NotificationStore abstracts the notification data access the monitor needs.
// Implemented by db.NotificationRepository.
type NotificationStore interface {
	// ExistsForDay reports whether the trip already has a notification for
	// the given calendar day.
	ExistsForDay(ctx context.Context, tripID string, day time.Time) (bool, error)
	// Create inserts the notification keyed to the given day. Returns false
	// when a same-day record already exists.
	Create(ctx context.Context, n *types.Notification, day time.Time) (bool, error)
	// MarkEmailSent flags the notification after confirmed delivery.
	MarkEmailSent(ctx context.Context, id string) error
	// SetReplannedItinerary stores the replanned itinerary text.
	SetReplannedItinerary(ctx context.Context, id, itinerary string) error
}

// ForecastGateway fetches relevant forecast points for a destination.
// Implemented by weather.Gateway.
type ForecastGateway interface {
	FetchForecast(ctx context.Context, destination string, tripStart time.Time) ([]types.ForecastPoint, error)
}

// MessageGenerator produces the user-facing alert text. Never fails.
// Implemented by notifications.Generator.
type MessageGenerator interface {
	Generate(ctx context.Context, destination string, alert types.WeatherAlert) string
}

// Replanner produces a revised itinerary for a critical alert.
// Implemented by notifications.Replanner.
type Replanner interface {
	Replan(ctx context.Context, trip types.Trip, user types.User, alert types.WeatherAlert) (string, error)
}

// EmailDispatcher sends the alert email. Implemented by email.Channel.
type EmailDispatcher interface {
	SendAlert(ctx context.Context, userEmail, userName string, n *types.Notification) bool
}

// RunLock guards against overlapping runs. Implemented by
// db.JobLockRepository. Nil disables the database lock (tests, single-shot
// invocations); the in-process guard still applies.
type RunLock interface {
	Acquire(ctx context.Context, lockID, workerID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, lockID, workerID string) error
}

// RunHistory records run outcomes for operational visibility. Implemented by
// db.JobHistoryRepository. Nil disables history.
type RunHistory interface {
	Start(ctx context.Context, jobType string) (int64, error)
	Finish(ctx context.Context, id int64, status string, items int, jobErr error) error
}

// Classifier grades forecast points into an alert, or nil for none.
// Defaults to weather.Classify.
type Classifier func(points []types.ForecastPoint) *types.WeatherAlert

// Policy decides whether an alert warrants a notification.
// Defaults to notifications.ShouldNotify.
type Policy func(alert *types.WeatherAlert, tripStart, now time.Time) bool

// TripMonitorConfig holds the configuration for creating a TripMonitor.
type TripMonitorConfig struct {
	Trips         TripStore
	Notifications NotificationStore
	Forecasts     ForecastGateway
	Generator     MessageGenerator
	Replanner     Replanner
	Email         EmailDispatcher
	Lock          RunLock    // optional
	History       RunHistory // optional
	Metrics       notifications.PipelineMetrics

	Classify Classifier  // defaults to weather.Classify
	Notify   Policy      // defaults to notifications.ShouldNotify
	Clock    types.Clock // defaults to types.RealClock

	// WindowDays is the eligibility horizon: trips starting within
	// [today, today+WindowDays] are evaluated.
	WindowDays int
	// Concurrency bounds parallel trip evaluation. Values <= 1 process
	// trips strictly sequentially.
	Concurrency int
	// LockTTL is how long the run lock is held before a crashed run's lock
	// may be reclaimed.
	LockTTL time.Duration
	// WorkerID identifies this process in the lock table.
	WorkerID string

	Logger *slog.Logger
}

// TripMonitor drives the daily notification run.
type TripMonitor struct {
	trips    TripStore
	notifs   NotificationStore
	gateway  ForecastGateway
	generate MessageGenerator
	replan   Replanner
	email    EmailDispatcher
	lock     RunLock
	history  RunHistory
	metrics  notifications.PipelineMetrics
	classify Classifier
	notify   Policy
	clock    types.Clock

	windowDays  int
	concurrency int
	lockTTL     time.Duration
	workerID    string

	logger *slog.Logger

	// running is the in-process overlap guard, checked before the
	// database lock so a slow run skips the next tick cheaply.
	running atomic.Bool
}

// NewTripMonitor creates a TripMonitor with the given configuration.
func NewTripMonitor(cfg TripMonitorConfig) *TripMonitor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	classify := cfg.Classify
	if classify == nil {
		classify = weather.Classify
	}
	notify := cfg.Notify
	if notify == nil {
		notify = notifications.ShouldNotify
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = notifications.NoopMetrics{}
	}
	windowDays := cfg.WindowDays
	if windowDays <= 0 {
		windowDays = 30
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Hour
	}

	return &TripMonitor{
		trips:       cfg.Trips,
		notifs:      cfg.Notifications,
		gateway:     cfg.Forecasts,
		generate:    cfg.Generator,
		replan:      cfg.Replanner,
		email:       cfg.Email,
		lock:        cfg.Lock,
		history:     cfg.History,
		metrics:     metrics,
		classify:    classify,
		notify:      notify,
		clock:       clock,
		windowDays:  windowDays,
		concurrency: concurrency,
		lockTTL:     lockTTL,
		workerID:    cfg.WorkerID,
		logger:      logger,
	}
}

// Run executes one full notification pass and returns the number of
// notifications created. A run already in progress (in this process or, via
// the run lock, anywhere) causes the call to return immediately without
// doing any work.
//
// Only the eligibility query itself is fatal to a run; every per-trip
// failure is contained and the run continues with the next trip.
func (m *TripMonitor) Run(ctx context.Context) (int, error) {
	if !m.running.CompareAndSwap(false, true) {
		m.logger.WarnContext(ctx, "notification run already in progress, skipping")
		return 0, nil
	}
	defer m.running.Store(false)

	if m.lock != nil {
		acquired, err := m.lock.Acquire(ctx, RunLockID, m.workerID, m.lockTTL)
		if err != nil {
			return 0, fmt.Errorf("acquiring run lock: %w", err)
		}
		if !acquired {
			m.logger.WarnContext(ctx, "run lock held elsewhere, skipping",
				"lock_id", RunLockID,
			)
			return 0, nil
		}
		defer func() {
			if err := m.lock.Release(ctx, RunLockID, m.workerID); err != nil {
				m.logger.ErrorContext(ctx, "failed to release run lock", "error", err)
			}
		}()
	}

	// History is observability, not a precondition. A failed Start only
	// disables recording for this run, not for the process lifetime.
	history := m.history
	var historyID int64
	if history != nil {
		var err error
		historyID, err = history.Start(ctx, JobType)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to record run start", "error", err)
			history = nil
		}
	}

	started := m.clock.Now()
	m.logger.InfoContext(ctx, "notification run starting")

	notified, runErr := m.runOnce(ctx, started)

	if history != nil {
		status := "success"
		if runErr != nil {
			status = "failed"
		}
		if err := history.Finish(ctx, historyID, status, notified, runErr); err != nil {
			m.logger.ErrorContext(ctx, "failed to record run finish", "error", err)
		}
	}

	m.metrics.RecordRunDuration(ctx, m.clock.Now().Sub(started))
	m.logger.InfoContext(ctx, "notification run complete",
		"notified", notified,
		"duration", m.clock.Now().Sub(started),
	)

	return notified, runErr
}

// runOnce performs the eligibility query and drives per-trip evaluation.
func (m *TripMonitor) runOnce(ctx context.Context, now time.Time) (int, error) {
	today := dateOnly(now)
	windowEnd := today.AddDate(0, 0, m.windowDays)

	users, err := m.trips.ListUsersWithUpcomingTrips(ctx, today, windowEnd)
	if err != nil {
		m.logger.ErrorContext(ctx, "eligibility query failed", "error", err)
		return 0, fmt.Errorf("listing users with upcoming trips: %w", err)
	}

	m.logger.InfoContext(ctx, "found users with upcoming trips", "count", len(users))

	var notified atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(m.concurrency)

	for _, user := range users {
		for _, trip := range user.Trips {
			user, trip := user, trip
			g.Go(func() error {
				if m.evaluateTrip(ctx, user, trip, today, windowEnd, now) {
					notified.Add(1)
				}
				// Per-trip failures are contained inside evaluateTrip;
				// returning an error here would cancel sibling trips.
				return nil
			})
		}
	}

	// Always nil; Wait is just the completion barrier.
	_ = g.Wait()

	return int(notified.Load()), nil
}

// evaluateTrip runs the per-trip state machine: eligibility, dedup,
// forecast, classification, policy, message, persistence, email, replan.
// Returns true when a notification was created. All failures, including
// panics, are contained here.
func (m *TripMonitor) evaluateTrip(ctx context.Context, user types.User, trip types.Trip, today, windowEnd, now time.Time) (created bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "panic during trip evaluation",
				"user_id", user.ID,
				"trip_id", trip.ID,
				"panic", r,
			)
			created = false
		}
	}()

	m.metrics.RecordTripEvaluated(ctx)

	// Step 1: eligibility. The user-level query is a coarse pre-filter; the
	// user's trip list may contain trips outside the window.
	tripDay := dateOnly(trip.StartDate)
	if tripDay.Before(today) || tripDay.After(windowEnd) {
		return false
	}

	// Step 2: dedup. One notification per trip per calendar day; skip before
	// making any external call.
	exists, err := m.notifs.ExistsForDay(ctx, trip.ID, today)
	if err != nil {
		m.logger.ErrorContext(ctx, "dedup check failed",
			"user_id", user.ID,
			"trip_id", trip.ID,
			"error", err,
		)
		return false
	}
	if exists {
		m.logger.DebugContext(ctx, "already notified today", "trip_id", trip.ID)
		return false
	}

	// Step 3: forecast fetch. No data means no alert.
	points, err := m.gateway.FetchForecast(ctx, trip.Destination, trip.StartDate)
	if err != nil {
		m.logger.ErrorContext(ctx, "forecast fetch failed",
			"user_id", user.ID,
			"trip_id", trip.ID,
			"destination", trip.Destination,
			"error", err,
		)
		return false
	}
	if len(points) == 0 {
		return false
	}

	// Step 4: classify.
	alert := m.classify(points)
	if alert == nil {
		return false
	}

	// Step 5: policy.
	if !m.notify(alert, trip.StartDate, now) {
		return false
	}

	// Step 6: generate the message. Never fails; falls back internally.
	message := m.generate.Generate(ctx, trip.Destination, *alert)

	// Step 7: persist the notification. The unique index re-verifies the
	// dedup under concurrency.
	n := &types.Notification{
		UserID:      user.ID,
		TripID:      trip.ID,
		Destination: trip.Destination,
		Message:     message,
		Severity:    alert.Severity,
		Type:        types.NotificationWeather,
	}
	inserted, err := m.notifs.Create(ctx, n, today)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to create notification",
			"user_id", user.ID,
			"trip_id", trip.ID,
			"error", err,
		)
		return false
	}
	if !inserted {
		m.logger.DebugContext(ctx, "concurrent run already notified today", "trip_id", trip.ID)
		return false
	}

	m.metrics.RecordNotification(ctx, alert.Severity)
	m.logger.InfoContext(ctx, "notification created",
		"notification_id", n.ID,
		"user_id", user.ID,
		"destination", trip.Destination,
		"severity", alert.Severity,
	)

	// Step 8: email. Mark email_sent only on confirmed delivery.
	if m.email.SendAlert(ctx, user.Email, user.Name, n) {
		if err := m.notifs.MarkEmailSent(ctx, n.ID); err != nil {
			m.logger.ErrorContext(ctx, "failed to mark email sent",
				"notification_id", n.ID,
				"error", err,
			)
		}
		m.metrics.RecordEmail(ctx, notifications.MetricSuccess)
	} else {
		m.metrics.RecordEmail(ctx, notifications.MetricFailed)
	}

	// Step 9: critical alerts trigger the replanning agent. Email delivery
	// has already completed; a failed replan changes nothing downstream.
	if alert.Severity == types.SeverityCritical {
		m.replanTrip(ctx, user, trip, *alert, n.ID)
	}

	return true
}

// replanTrip asks the replanning agent for a revised itinerary and, on
// success, records it on the notification and applies it to the trip.
func (m *TripMonitor) replanTrip(ctx context.Context, user types.User, trip types.Trip, alert types.WeatherAlert, notificationID string) {
	itinerary, err := m.replan.Replan(ctx, trip, user, alert)
	if err != nil {
		m.metrics.RecordReplan(ctx, notifications.MetricFailed)
		return
	}
	if itinerary == "" {
		m.logger.InfoContext(ctx, "replan agent produced no itinerary", "trip_id", trip.ID)
		m.metrics.RecordReplan(ctx, notifications.MetricSkipped)
		return
	}

	if err := m.notifs.SetReplannedItinerary(ctx, notificationID, itinerary); err != nil {
		m.logger.ErrorContext(ctx, "failed to store replanned itinerary",
			"notification_id", notificationID,
			"error", err,
		)
	}

	if err := m.trips.ApplyReplan(ctx, user.ID, trip.ID, itinerary); err != nil {
		m.logger.ErrorContext(ctx, "failed to apply replan to trip",
			"user_id", user.ID,
			"trip_id", trip.ID,
			"error", err,
		)
		m.metrics.RecordReplan(ctx, notifications.MetricFailed)
		return
	}

	m.metrics.RecordReplan(ctx, notifications.MetricSuccess)
	m.logger.InfoContext(ctx, "trip replanned",
		"user_id", user.ID,
		"trip_id", trip.ID,
		"destination", trip.Destination,
	)
}

// dateOnly truncates a timestamp to its calendar day. Comparing the
// resulting values compares calendar days regardless of each input's
// timezone or wall-clock time.
func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
