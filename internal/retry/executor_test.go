package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldigest/internal/metrics"
	"caldigest/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

func newTestExecutor(tracker *metrics.Tracker, sleeps *[]time.Duration) *Executor {
	return NewExecutor(tracker, nopLogger{}, 0, 0,
		WithSleepFunc(func(d time.Duration) { *sleeps = append(*sleeps, d) }),
		WithJitterFunc(func() time.Duration { return 0 }),
	)
}

func TestIsTransient_PatternTable(t *testing.T) {
	tests := []struct {
		msg       string
		transient bool
	}{
		{"Service is currently unavailable, try later", true},
		{"Temporary failure in name resolution", true},
		{"Rate limit reached for user", true},
		{"Calendar quota has been exceeded", true},
		{"request timeout after 30s", true},
		{"network connection error", true},
		{"Internal server error", true},
		{"Service backend error", true},
		{"calendar not found", false},
		{"permission denied", false},
		{"invalid argument", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(errors.New(tt.msg)))
		})
	}
}

func TestIsTransient_StructuredCodesWin(t *testing.T) {
	// Transient code on a harmless-looking message.
	transient := types.NewAppError(types.ErrCodeUpstreamRateLimited, "try again", nil)
	assert.True(t, IsTransient(transient))

	// Terminal code on a message that would otherwise pattern-match.
	terminal := types.NewAppError(types.ErrCodeEmailBlocked, "provider internal error: blocked", nil)
	assert.False(t, IsTransient(terminal))

	assert.False(t, IsTransient(nil))
}

func TestExecutor_SucceedsFirstTry(t *testing.T) {
	var sleeps []time.Duration
	tracker := metrics.NewTracker(nil)
	e := newTestExecutor(tracker, &sleeps)

	calls := 0
	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
	assert.Equal(t, 0, tracker.Summary().RetriesPerformed)
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	var sleeps []time.Duration
	tracker := metrics.NewTracker(nil)
	e := newTestExecutor(tracker, &sleeps)

	calls := 0
	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("request timeout")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// Backoff doubles from the base delay with jitter pinned to zero.
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, sleeps)
	assert.Equal(t, 2, tracker.Summary().RetriesPerformed)
}

func TestExecutor_NonTransientPropagatesImmediately(t *testing.T) {
	var sleeps []time.Duration
	e := newTestExecutor(metrics.NewTracker(nil), &sleeps)

	calls := 0
	wantErr := errors.New("calendar not found")
	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeps)
}

func TestExecutor_ExhaustionReturnsLastError(t *testing.T) {
	var sleeps []time.Duration
	tracker := metrics.NewTracker(nil)
	e := newTestExecutor(tracker, &sleeps)

	calls := 0
	err := e.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("rate limit exceeded")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, DefaultMaxAttempts, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, sleeps)
	assert.Equal(t, 3, tracker.Summary().RetriesPerformed)
}

func TestExecutor_JitterAddsToBackoff(t *testing.T) {
	var sleeps []time.Duration
	e := NewExecutor(nil, nopLogger{}, 2, time.Second,
		WithSleepFunc(func(d time.Duration) { sleeps = append(sleeps, d) }),
		WithJitterFunc(func() time.Duration { return 250 * time.Millisecond }),
	)

	_ = e.Do(context.Background(), "op", func(context.Context) error {
		return errors.New("temporary failure")
	})

	require.Len(t, sleeps, 1)
	assert.Equal(t, 1250*time.Millisecond, sleeps[0])
}
