package delivery

import (
	"context"
	"time"

	"caldigest/internal/metrics"
	"caldigest/internal/retry"
	"caldigest/internal/types"
)

// Batch pacing defaults: ten messages per batch, a short pause between
// batches (not between messages within a batch).
const (
	DefaultBatchSize  = 10
	DefaultBatchPause = 100 * time.Millisecond
)

// Sender drains the outbound queue in fixed-size batches. Each message is
// attempted on the primary channel wrapped in retry; on exhausted retry
// the same message goes to the fallback channel, also wrapped in retry.
// Only a double failure marks the message failed.
type Sender struct {
	Primary  types.SendChannel
	Fallback types.SendChannel
	Retry    *retry.Executor
	Tracker  *metrics.Tracker
	Log      types.Logger

	BatchSize int
	Pause     time.Duration

	sleepFn func(time.Duration)
}

// SenderOption is a functional option for configuring a Sender.
type SenderOption func(*Sender)

// WithPauseFunc overrides the inter-batch sleep. Intended for tests.
func WithPauseFunc(fn func(time.Duration)) SenderOption {
	return func(s *Sender) { s.sleepFn = fn }
}

// NewSender creates a Sender. Zero batchSize or pause fall back to the
// defaults.
func NewSender(primary, fallback types.SendChannel, exec *retry.Executor, tracker *metrics.Tracker, log types.Logger, batchSize int, pause time.Duration, opts ...SenderOption) *Sender {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if pause <= 0 {
		pause = DefaultBatchPause
	}

	s := &Sender{
		Primary:   primary,
		Fallback:  fallback,
		Retry:     exec,
		Tracker:   tracker,
		Log:       log,
		BatchSize: batchSize,
		Pause:     pause,
		sleepFn:   time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendAll attempts every queued message. Batch k is fully attempted before
// batch k+1 begins; the pause occurs only between batches.
func (s *Sender) SendAll(ctx context.Context, queue []types.OutboundMessage) {
	for start := 0; start < len(queue); start += s.BatchSize {
		if start > 0 {
			s.sleepFn(s.Pause)
		}

		end := min(start+s.BatchSize, len(queue))
		for _, msg := range queue[start:end] {
			s.sendOne(ctx, msg)
		}
	}
}

// sendOne runs the primary-then-fallback sequence for a single message and
// updates the run counters.
func (s *Sender) sendOne(ctx context.Context, msg types.OutboundMessage) {
	redacted := types.RedactAddress(msg.To)

	err := s.Retry.Do(ctx, "send via "+s.Primary.Name(), func(ctx context.Context) error {
		return s.Primary.Send(ctx, msg)
	})
	if err == nil {
		s.Tracker.EmailSent()
		return
	}

	s.Log.Warn("primary channel exhausted, trying fallback",
		"to", redacted,
		"primary", s.Primary.Name(),
		"error", err.Error(),
	)

	err = s.Retry.Do(ctx, "send via "+s.Fallback.Name(), func(ctx context.Context) error {
		return s.Fallback.Send(ctx, msg)
	})
	if err == nil {
		s.Tracker.EmailSent()
		s.Log.Info("message delivered via fallback channel", "to", redacted)
		return
	}

	s.Tracker.EmailFailed()
	s.Tracker.RecordError(err.Error(), "Sending email to "+msg.To)
	s.Log.Error("message failed on both channels",
		"to", redacted,
		"error", err.Error(),
	)
}
