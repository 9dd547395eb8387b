// Package metrics implements the per-run execution tracker. One Tracker is
// constructed at the start of a run and passed by pointer into every stage;
// the pipeline is sequential so plain increments are safe without locks.
// At the end of the run the tracker produces the summary that becomes the
// administrator report.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"caldigest/internal/types"
)

// RunError is one recorded failure with the context it occurred in.
type RunError struct {
	Message   string
	Context   string
	Timestamp time.Time
}

// Tracker accumulates counters and errors for a single run. Counters are
// monotonically increasing; the errors list is append-only.
type Tracker struct {
	clock     types.Clock
	startedAt time.Time

	calendarsProcessed int
	eventsFound        int
	emailsSent         int
	emailsFailed       int
	retriesPerformed   int
	errors             []RunError
}

// NewTracker creates a Tracker anchored at the clock's current time.
func NewTracker(clock types.Clock) *Tracker {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Tracker{
		clock:     clock,
		startedAt: clock.Now(),
	}
}

// CalendarProcessed records one successful calendar fetch contributing n events.
func (t *Tracker) CalendarProcessed(events int) {
	t.calendarsProcessed++
	t.eventsFound += events
}

// EmailSent records one successful send, on either channel.
func (t *Tracker) EmailSent() { t.emailsSent++ }

// EmailFailed records a message that failed on both channels.
func (t *Tracker) EmailFailed() { t.emailsFailed++ }

// RetryPerformed records one retry attempt anywhere in the run.
func (t *Tracker) RetryPerformed() { t.retriesPerformed++ }

// RecordError appends an error with its context to the run log.
func (t *Tracker) RecordError(message, context string) {
	t.errors = append(t.errors, RunError{
		Message:   message,
		Context:   context,
		Timestamp: t.clock.Now(),
	})
}

// Summary is an immutable snapshot of the run outcome.
type Summary struct {
	CalendarsProcessed int
	EventsFound        int
	EmailsSent         int
	EmailsFailed       int
	RetriesPerformed   int
	Errors             []RunError
	Elapsed            time.Duration
	FormattedDuration  string
	Success            bool
}

// Summary snapshots the tracker. Success requires zero recorded errors and
// zero failed sends.
func (t *Tracker) Summary() Summary {
	elapsed := t.clock.Now().Sub(t.startedAt)
	errs := make([]RunError, len(t.errors))
	copy(errs, t.errors)

	return Summary{
		CalendarsProcessed: t.calendarsProcessed,
		EventsFound:        t.eventsFound,
		EmailsSent:         t.emailsSent,
		EmailsFailed:       t.emailsFailed,
		RetriesPerformed:   t.retriesPerformed,
		Errors:             errs,
		Elapsed:            elapsed,
		FormattedDuration:  FormatDuration(elapsed),
		Success:            len(t.errors) == 0 && t.emailsFailed == 0,
	}
}

// FormatDuration renders a duration as "Ns" under a minute, otherwise
// "Mm Ss".
func FormatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 0 {
		secs = 0
	}
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

// Report renders the admin-facing run report from a summary.
func (s Summary) Report(runID string) string {
	var b strings.Builder

	status := "SUCCESS"
	if !s.Success {
		status = "COMPLETED WITH ERRORS"
	}

	fmt.Fprintf(&b, "Calendar Digest Run Report\n")
	fmt.Fprintf(&b, "Run ID:              %s\n", runID)
	fmt.Fprintf(&b, "Status:              %s\n", status)
	fmt.Fprintf(&b, "Duration:            %s\n", s.FormattedDuration)
	fmt.Fprintf(&b, "Calendars processed: %d\n", s.CalendarsProcessed)
	fmt.Fprintf(&b, "Events found:        %d\n", s.EventsFound)
	fmt.Fprintf(&b, "Emails sent:         %d\n", s.EmailsSent)
	fmt.Fprintf(&b, "Emails failed:       %d\n", s.EmailsFailed)
	fmt.Fprintf(&b, "Retries performed:   %d\n", s.RetriesPerformed)

	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", e.Timestamp.Format(time.RFC3339), e.Context, e.Message)
		}
	}

	return b.String()
}
