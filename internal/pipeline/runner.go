// Package pipeline orchestrates one digest run end to end: load the
// recipient sheet, expand and gate recipients, batch-fetch calendars,
// reconcile results, build the outbound queue and drain it through the
// send channels. The run never aborts on individual failures past sheet
// loading; everything is recorded in the tracker and summarized in the
// administrator report sent as the run finishes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caldigest/internal/batch"
	"caldigest/internal/delivery"
	"caldigest/internal/metrics"
	"caldigest/internal/recipients"
	"caldigest/internal/retry"
	"caldigest/internal/types"
)

// Runner holds the collaborators for digest runs. One Runner serves many
// runs; per-run state (tracker, executor) is created inside Run.
type Runner struct {
	Sheet     types.SheetSource
	Calendars types.CalendarService
	Renderer  types.DigestRenderer
	Primary   types.SendChannel
	Fallback  types.SendChannel
	Clock     types.Clock
	Loc       *time.Location
	Log       types.Logger

	// AdminAddr receives the run report. Empty disables the report.
	AdminAddr string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	BatchSize        int
	BatchPause       time.Duration

	// Test seams threaded into the per-run executor and sender.
	RetryOptions  []retry.Option
	SenderOptions []delivery.SenderOption
}

// Run executes one digest run and returns its summary. A panic anywhere in
// the run is recovered into the tracker so the administrator report still
// goes out.
func (r *Runner) Run(ctx context.Context) (summary metrics.Summary) {
	runID := uuid.NewString()
	log := r.Log.With("run_id", runID)
	tracker := metrics.NewTracker(r.Clock)

	log.Info("digest run started")

	defer func() {
		summary = tracker.Summary()
		log.Info("digest run finished",
			"success", summary.Success,
			"duration", summary.FormattedDuration,
			"emails_sent", summary.EmailsSent,
			"emails_failed", summary.EmailsFailed,
			"errors", len(summary.Errors),
		)
		r.sendAdminReport(ctx, log, runID, summary)
	}()
	defer func() {
		if rec := recover(); rec != nil {
			tracker.RecordError(fmt.Sprintf("panic: %v", rec), "Unexpected failure")
			log.Error("digest run panicked", "panic", fmt.Sprint(rec))
		}
	}()

	exec := retry.NewExecutor(tracker, log, r.RetryMaxAttempts, r.RetryBaseDelay, r.RetryOptions...)

	table, err := r.Sheet.FetchTable(ctx)
	if err != nil {
		tracker.RecordError(err.Error(), "Loading recipient sheet")
		log.Error("recipient sheet unavailable, aborting run", "error", err.Error())
		return
	}

	if err := recipients.ValidateColumns(table); err != nil {
		tracker.RecordError(err.Error(), "Validating sheet columns")
		log.Error("recipient sheet malformed, aborting run", "error", err.Error())
		return
	}

	records := recipients.NewExpander(log).Expand(table)

	gate := recipients.NewGate(r.Clock, r.Loc, log)
	gated := make([]types.RecipientRecord, 0, len(records))
	for _, rec := range records {
		if gate.ShouldSend(rec.Preferences.Frequency) {
			gated = append(gated, rec)
		}
	}
	log.Info("recipients expanded",
		"rows", len(table.Rows),
		"records", len(records),
		"due_today", len(gated),
	)

	batcher := &batch.Batcher{
		Calendars: r.Calendars,
		Resolver:  recipients.NewResolver(r.Clock, r.Loc),
		Retry:     exec,
		Tracker:   tracker,
		Log:       log,
	}

	groups := batcher.BuildGroups(gated)
	log.Info("fetch groups built", "groups", len(groups), "records", len(gated))

	set := batcher.FetchAll(ctx, groups)
	deliveries := batch.Reconcile(set)

	builder := &delivery.QueueBuilder{Renderer: r.Renderer, Log: log}
	queue := builder.Build(deliveries)
	log.Info("delivery queue built", "messages", len(queue))

	sender := delivery.NewSender(r.Primary, r.Fallback, exec, tracker, log,
		r.BatchSize, r.BatchPause, r.SenderOptions...)
	sender.SendAll(ctx, queue)

	return
}

// sendAdminReport delivers the run summary to the administrator address on
// the primary channel. Report delivery is best effort: a failure is logged
// but never affects the run outcome.
func (r *Runner) sendAdminReport(ctx context.Context, log types.Logger, runID string, summary metrics.Summary) {
	if r.AdminAddr == "" {
		return
	}

	subject := "Calendar Digest Run Report: SUCCESS"
	if !summary.Success {
		subject = "Calendar Digest Run Report: COMPLETED WITH ERRORS"
	}

	msg := types.OutboundMessage{
		To:      r.AdminAddr,
		Subject: subject,
		Body:    summary.Report(runID),
	}
	if err := r.Primary.Send(ctx, msg); err != nil {
		log.Warn("admin report delivery failed", "error", err.Error())
	}
}
