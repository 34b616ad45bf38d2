// Package config defines the global configuration structure for the TripGenie
// alerting service. Configuration is loaded once at process initialization and
// is immutable thereafter, following 12-Factor App principles.
//
// Values are resolved from the OS environment, with a dotenv file as a
// development convenience. Any missing required value or invalid format causes
// the application to exit immediately on startup (fail fast).
package config

import (
	"time"

	"tripgenie/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. It is populated once during
// process initialization and never modified. Sub-components receive only the
// specific config subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server    ServerConfig
	Database  DatabaseConfig
	Weather   WeatherConfig
	Planner   PlannerConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration for the notification read API.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// DashboardURL is the public frontend URL used in email call-to-action
	// links (no trailing slash).
	DashboardURL string `envconfig:"DASHBOARD_URL" default:"http://localhost:3000"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// WeatherConfig holds the OpenWeather provider credentials and endpoints.
type WeatherConfig struct {
	APIKey  SecretString  `envconfig:"OPENWEATHER_API_KEY" validate:"required"`
	BaseURL string        `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org"`
	Timeout time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
}

// PlannerConfig holds the external LLM planning agent endpoints. The agent
// serves two roles: free-form query answering (alert message generation) and
// trip replanning. Both live on the same service but behind distinct routes.
type PlannerConfig struct {
	URL     string        `envconfig:"PLANNER_URL" default:"http://localhost:8000"`
	Timeout time.Duration `envconfig:"PLANNER_TIMEOUT" default:"30s"`
}

// EmailConfig holds email delivery provider credentials and sender identity.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" validate:"required,email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"TripGenie Alerts"`
	Timeout        time.Duration `envconfig:"EMAIL_TIMEOUT" default:"10s"`
	Enabled        bool          `envconfig:"FEATURE_ENABLE_EMAIL" default:"true"`
}

// SchedulerConfig holds the daily run cadence and pipeline tuning parameters.
type SchedulerConfig struct {
	// CronSpec is the fixed daily trigger in standard cron format.
	// The default matches the original 08:00 daily run.
	CronSpec string `envconfig:"SCHEDULER_CRON" default:"0 8 * * *"`

	// WindowDays is the trip eligibility horizon: trips starting within
	// [today, today+WindowDays] are evaluated.
	WindowDays int `envconfig:"SCHEDULER_WINDOW_DAYS" default:"30" validate:"min=1"`

	// Concurrency bounds how many trips are evaluated in parallel within one
	// run. 1 (the default) processes trips strictly sequentially.
	Concurrency int `envconfig:"SCHEDULER_CONCURRENCY" default:"1" validate:"min=1"`

	// RunLockTTL is how long the run lock is held before a crashed run's
	// lock can be reclaimed. Must comfortably exceed a full run's duration.
	RunLockTTL time.Duration `envconfig:"SCHEDULER_RUN_LOCK_TTL" default:"1h"`

	// RunOnStart triggers an immediate run at process start in addition to
	// the cron schedule. Useful in development.
	RunOnStart bool `envconfig:"SCHEDULER_RUN_ON_START" default:"false"`
}

// MetricsConfig holds CloudWatch telemetry settings.
type MetricsConfig struct {
	Enabled   bool   `envconfig:"METRICS_ENABLED" default:"false"`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}
