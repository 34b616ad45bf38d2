// Package main is the entrypoint for the TripGenie notification scheduler.
//
// The scheduler wakes on a fixed daily cron schedule, scans every user with a
// trip starting in the next 30 days, fetches and classifies the destination
// forecast, and creates at most one notification per trip per day. Critical
// alerts additionally trigger automatic trip replanning.
//
// This file handles dependency wiring only; all pipeline logic lives in
// internal/scheduler (TripMonitor.Run).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"tripgenie/internal/config"
	"tripgenie/internal/db"
	"tripgenie/internal/external"
	"tripgenie/internal/notifications"
	"tripgenie/internal/notifications/email"
	"tripgenie/internal/scheduler"
	"tripgenie/internal/types"
	"tripgenie/internal/weather"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("notification scheduler initializing",
		"environment", cfg.Environment,
		"cron", cfg.Scheduler.CronSpec,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// External provider clients. Each gets its own http.Client so per-provider
	// timeouts stay independent.
	weatherClient := external.NewOpenWeatherClient(
		&http.Client{Timeout: cfg.Weather.Timeout},
		external.OpenWeatherClientConfig{
			APIKey:  cfg.Weather.APIKey.Unmask(),
			BaseURL: cfg.Weather.BaseURL,
			Logger:  logger,
		},
	)
	plannerClient := external.NewPlannerClient(
		&http.Client{Timeout: cfg.Planner.Timeout},
		external.PlannerClientConfig{
			BaseURL: cfg.Planner.URL,
			Logger:  logger,
		},
	)
	sendgridClient := external.NewSendGridClient(
		&http.Client{Timeout: cfg.Email.Timeout},
		external.SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger,
		},
	)

	renderer, err := email.NewRenderer(cfg.Server.DashboardURL)
	if err != nil {
		logger.Error("failed to initialize email renderer", "error", err)
		os.Exit(1)
	}

	var dispatcher scheduler.EmailDispatcher = email.NewChannel(email.ChannelConfig{
		Provider:    sendgridClient,
		Renderer:    renderer,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		Logger:      logger,
	})
	if !cfg.Email.Enabled {
		logger.Warn("email delivery disabled by feature flag")
		dispatcher = noopDispatcher{logger: logger}
	}

	metrics, err := newMetrics(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	monitor := scheduler.NewTripMonitor(scheduler.TripMonitorConfig{
		Trips:         db.NewUserRepository(pool),
		Notifications: db.NewNotificationRepository(pool),
		Forecasts:     weather.NewGateway(weatherClient, weatherClient, logger),
		Generator:     notifications.NewGenerator(plannerClient, logger),
		Replanner:     notifications.NewReplanner(plannerClient, logger),
		Email:         dispatcher,
		Lock:          db.NewJobLockRepository(pool),
		History:       db.NewJobHistoryRepository(pool),
		Metrics:       metrics,
		WindowDays:    cfg.Scheduler.WindowDays,
		Concurrency:   cfg.Scheduler.Concurrency,
		LockTTL:       cfg.Scheduler.RunLockTTL,
		WorkerID:      workerID(),
		Logger:        logger,
	})

	runner := cron.New()
	if _, err := runner.AddFunc(cfg.Scheduler.CronSpec, func() {
		if _, err := monitor.Run(ctx); err != nil {
			logger.Error("scheduled notification run failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid cron spec", "cron", cfg.Scheduler.CronSpec, "error", err)
		os.Exit(1)
	}

	if cfg.Scheduler.RunOnStart {
		if _, err := monitor.Run(ctx); err != nil {
			logger.Error("startup notification run failed", "error", err)
		}
	}

	runner.Start()
	logger.Info("notification scheduler started", "cron", cfg.Scheduler.CronSpec)

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for in-flight run")

	// Stop returns a context that completes when the running job (if any)
	// finishes.
	<-runner.Stop().Done()
	logger.Info("notification scheduler stopped")
}

// newPool builds a pgx connection pool from the database configuration.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// newMetrics returns a CloudWatch-backed metrics emitter when enabled,
// otherwise a no-op.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (notifications.PipelineMetrics, error) {
	if !cfg.Metrics.Enabled {
		return notifications.NoopMetrics{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Metrics.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}

	return notifications.NewCloudWatchPipelineMetrics(cloudwatch.NewFromConfig(awsCfg), logger), nil
}

// workerID identifies this process in the run lock table.
func workerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "scheduler"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// noopDispatcher satisfies the email dispatcher contract when delivery is
// disabled. Reports false so notifications never get a phantom email_sent.
type noopDispatcher struct {
	logger *slog.Logger
}

func (d noopDispatcher) SendAlert(ctx context.Context, userEmail, userName string, n *types.Notification) bool {
	d.logger.InfoContext(ctx, "email delivery disabled, skipping send",
		"notification_id", n.ID,
		"destination", n.Destination,
	)
	return false
}
