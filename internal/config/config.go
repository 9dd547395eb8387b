// Package config defines the digest job's configuration. Configuration is
// loaded once at process start and is immutable thereafter, following
// 12-Factor principles: all values come from the environment, optionally
// seeded from a .env file in development.
package config

import (
	"time"

	"caldigest/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret
// type used for credentials so they never reach logs.
type SecretString = types.SecretString

// Config is the top-level configuration for the digest job. Sub-components
// receive only the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Sheet    SheetConfig
	Calendar CalendarConfig
	Email    EmailConfig
	Delivery DeliveryConfig
	Retry    RetryConfig
	Schedule ScheduleConfig
}

// SheetConfig locates the recipient configuration sheet.
type SheetConfig struct {
	// CSVURL is a published CSV export of the recipient sheet.
	CSVURL string `envconfig:"SHEET_CSV_URL" validate:"required,url"`
}

// CalendarConfig controls how calendar ids resolve to ICS feeds.
type CalendarConfig struct {
	// URLTemplate must contain one %s placeholder for the escaped
	// calendar id.
	URLTemplate  string        `envconfig:"CALENDAR_URL_TEMPLATE" default:"https://calendar.google.com/calendar/ical/%s/public/basic.ics" validate:"required,contains=%s"`
	FetchTimeout time.Duration `envconfig:"CALENDAR_FETCH_TIMEOUT" default:"15s"`
}

// EmailConfig holds provider credentials and sender identity.
type EmailConfig struct {
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" validate:"required,email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"Calendar Digest"`
	// AdminAddress receives the end-of-run summary report.
	AdminAddress string `envconfig:"ADMIN_EMAIL" validate:"required,email"`
	// AWSRegion is used by the SES fallback channel.
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// DeliveryConfig tunes outbound send pacing.
type DeliveryConfig struct {
	BatchSize  int           `envconfig:"SEND_BATCH_SIZE" default:"10" validate:"min=1"`
	BatchPause time.Duration `envconfig:"SEND_BATCH_PAUSE" default:"100ms"`
}

// RetryConfig tunes the shared retry executor.
type RetryConfig struct {
	MaxAttempts int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"4" validate:"min=1"`
	BaseDelay   time.Duration `envconfig:"RETRY_BASE_DELAY" default:"1s"`
}

// ScheduleConfig controls the cron-driven run loop.
type ScheduleConfig struct {
	// Cron is a standard 5-field cron expression evaluated in the run
	// timezone.
	Cron string `envconfig:"RUN_SCHEDULE" default:"0 6 * * *"`
	// Timezone anchors date-range resolution and frequency gating.
	Timezone string `envconfig:"RUN_TIMEZONE" default:"UTC"`
}

// RunLocation loads the configured run timezone. Unknown names fall back
// to UTC rather than failing the run.
func (c ScheduleConfig) RunLocation() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
