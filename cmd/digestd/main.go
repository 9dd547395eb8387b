// Package main is the entrypoint for the calendar digest daemon.
//
// Startup sequence:
//  1. Initialize the structured logger.
//  2. Load and validate configuration from the environment.
//  3. Load AWS SDK configuration for the SES fallback channel.
//  4. Construct the sheet source, calendar service, renderer and send
//     channels.
//  5. Run once (-once) or start the cron scheduler and run on every tick
//     until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/robfig/cron/v3"

	"caldigest/internal/calendar"
	"caldigest/internal/config"
	"caldigest/internal/external"
	"caldigest/internal/pipeline"
	"caldigest/internal/render"
	"caldigest/internal/sheet"
	"caldigest/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Warn and Error directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)

func logLevel(name string) slog.Level {
	switch name {
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

func main() {
	once := flag.Bool("once", false, "run a single digest pass and exit")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("configuration invalid", "error", err.Error())
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	typedLogger := &slogAdapter{logger: logger}

	logger.Info("digest daemon initializing", "environment", cfg.Environment)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Email.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err.Error())
		os.Exit(1)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		logger.Error("failed to initialize renderer", "error", err.Error())
		os.Exit(1)
	}

	sheetSource := sheet.NewCSVSource(
		external.NewBaseClient(nil, "sheet-csv"),
		cfg.Sheet.CSVURL,
		typedLogger,
	)

	calendarService := calendar.NewService(
		external.NewBaseClient(&http.Client{Timeout: cfg.Calendar.FetchTimeout}, "ics-feed"),
		cfg.Calendar.URLTemplate,
		typedLogger,
	)

	primary := external.NewSendGridChannel(
		external.NewBaseClient(nil, "sendgrid"),
		external.SendGridConfig{
			APIKey:   cfg.Email.SendGridAPIKey.Unmask(),
			FromAddr: cfg.Email.FromAddress,
			FromName: cfg.Email.FromName,
		},
	)
	fallback := external.NewSESChannel(awsCfg, external.SESConfig{
		FromAddr: cfg.Email.FromAddress,
		FromName: cfg.Email.FromName,
	})

	runner := &pipeline.Runner{
		Sheet:            sheetSource,
		Calendars:        calendarService,
		Renderer:         renderer,
		Primary:          primary,
		Fallback:         fallback,
		Clock:            types.RealClock{},
		Loc:              cfg.Schedule.RunLocation(),
		Log:              typedLogger,
		AdminAddr:        cfg.Email.AdminAddress,
		RetryMaxAttempts: cfg.Retry.MaxAttempts,
		RetryBaseDelay:   cfg.Retry.BaseDelay,
		BatchSize:        cfg.Delivery.BatchSize,
		BatchPause:       cfg.Delivery.BatchPause,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		summary := runner.Run(ctx)
		if !summary.Success {
			os.Exit(1)
		}
		return
	}

	scheduler := cron.New(cron.WithLocation(runner.Loc))
	if _, err := scheduler.AddFunc(cfg.Schedule.Cron, func() {
		runner.Run(ctx)
	}); err != nil {
		logger.Error("invalid cron schedule",
			"schedule", cfg.Schedule.Cron,
			"error", err.Error(),
		)
		os.Exit(1)
	}

	logger.Info("scheduler started",
		"schedule", cfg.Schedule.Cron,
		"timezone", cfg.Schedule.Timezone,
	)
	scheduler.Start()

	<-ctx.Done()
	logger.Info("shutdown signal received, waiting for in-flight run")
	<-scheduler.Stop().Done()
	logger.Info("digest daemon stopped")
}
