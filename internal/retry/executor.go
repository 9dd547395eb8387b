// Package retry implements the shared retry-with-backoff wrapper used by
// both calendar fetches and email sends. Transient failures are retried
// with exponential backoff and jitter; everything else propagates
// immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"time"

	"caldigest/internal/metrics"
	"caldigest/internal/types"
)

// Defaults: four total attempts (one initial plus three retries) starting
// from a one-second base delay.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 1 * time.Second

	// maxJitter is the upper bound of the random delay added to each backoff.
	maxJitter = 1 * time.Second
)

// transientPatterns is the authoritative message-level retry policy.
// Changing an entry changes observable retry behavior, so the list is kept
// exactly as-is; prefer raising AppErrors with transient codes over adding
// patterns.
var transientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)service is currently unavailable`),
	regexp.MustCompile(`(?i)temporary failure`),
	regexp.MustCompile(`(?i)rate limit`),
	regexp.MustCompile(`(?i)quota.*exceeded`),
	regexp.MustCompile(`(?i)timeout`),
	regexp.MustCompile(`(?i)network.*error`),
	regexp.MustCompile(`(?i)internal.*error`),
	regexp.MustCompile(`(?i)service.*error`),
}

// IsTransient classifies an error for retry purposes. Structured AppError
// codes win: a terminal code is never retried and a transient code always
// is, regardless of message text. Unclassified errors fall back to the
// message pattern scan.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if appErr.Code.Terminal() {
			return false
		}
		if appErr.Code.Transient() {
			return true
		}
	}

	msg := err.Error()
	for _, p := range transientPatterns {
		if p.MatchString(msg) {
			return true
		}
	}
	return false
}

// Executor retries an operation on transient failures with exponential
// backoff: delay = BaseDelay * 2^attempt + jitter, attempt starting at 0.
// The sleep is a plain blocking wait in the calling flow.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Tracker     *metrics.Tracker
	Log         types.Logger

	sleepFn  func(time.Duration)
	jitterFn func() time.Duration
}

// Option is a functional option for configuring an Executor.
type Option func(*Executor)

// WithSleepFunc overrides the sleep between attempts. Intended for tests.
func WithSleepFunc(fn func(time.Duration)) Option {
	return func(e *Executor) { e.sleepFn = fn }
}

// WithJitterFunc overrides the jitter source. Intended for tests.
func WithJitterFunc(fn func() time.Duration) Option {
	return func(e *Executor) { e.jitterFn = fn }
}

// NewExecutor creates an Executor with the given policy. Zero maxAttempts
// or baseDelay fall back to the defaults.
func NewExecutor(tracker *metrics.Tracker, log types.Logger, maxAttempts int, baseDelay time.Duration, opts ...Option) *Executor {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	e := &Executor{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		Tracker:     tracker,
		Log:         log,
		sleepFn:     time.Sleep,
		jitterFn: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs op, retrying transient failures up to MaxAttempts total attempts.
// Non-transient errors propagate immediately; after exhaustion the last
// error propagates. name identifies the operation in logs.
func (e *Executor) Do(ctx context.Context, name string, op func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < e.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt - 1)
			e.Log.Warn("retrying after transient failure",
				"operation", name,
				"attempt", attempt+1,
				"max_attempts", e.MaxAttempts,
				"delay_ms", delay.Milliseconds(),
				"error", lastErr.Error(),
			)
			e.sleepFn(delay)
			if e.Tracker != nil {
				e.Tracker.RetryPerformed()
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !IsTransient(lastErr) {
			e.Log.Error("non-transient failure, not retrying",
				"operation", name,
				"error", lastErr.Error(),
			)
			return lastErr
		}
	}

	e.Log.Error("retry attempts exhausted",
		"operation", name,
		"attempts", e.MaxAttempts,
		"error", lastErr.Error(),
	)
	return lastErr
}

// backoff computes the wait before the next attempt: BaseDelay doubled per
// completed attempt plus random jitter up to one second.
func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay + e.jitterFn()
}
