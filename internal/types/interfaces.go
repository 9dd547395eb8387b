package types

import (
	"context"
	"time"
)

// Logger defines the structured logging interface used throughout the
// pipeline. It mirrors slog's key-value style; cmd wires an adapter over
// *slog.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Clock abstracts the current time so frequency gating and date-range
// resolution are testable at fixed instants.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// SheetSource yields the configuration sheet: an ordered header row plus
// ordered data rows. Implementations may read a published CSV export, a
// local file, or anything else shaped like a sheet.
type SheetSource interface {
	FetchTable(ctx context.Context) (*SheetTable, error)
}

// Calendar is one calendar resolved by id. FetchEvents returns events
// overlapping the half-open [start, end) window, ordered by start time.
type Calendar interface {
	Name() string
	FetchEvents(ctx context.Context, start, end time.Time) ([]Event, error)
}

// CalendarService resolves calendar identifiers to Calendar handles.
// GetCalendarByID may return an error for unknown or unreachable calendars;
// the batcher wraps the whole resolve-and-fetch sequence in retry.
type CalendarService interface {
	GetCalendarByID(ctx context.Context, id string) (Calendar, error)
}

// SendChannel delivers one outbound message. Implementations map provider
// rejections to AppError codes so the retry layer can tell terminal
// failures (blocked recipient) from transient ones.
type SendChannel interface {
	Name() string
	Send(ctx context.Context, msg OutboundMessage) error
}

// DigestRenderer produces the message bodies. It is a pure collaborator:
// no side effects, no state between calls.
type DigestRenderer interface {
	RenderDigest(d DigestData) (RenderedMessage, error)
	RenderErrorNotice(d NoticeData) (RenderedMessage, error)
}
