package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldigest/internal/retry"
	"caldigest/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

// fixedClock pins the run to Wednesday 2025-03-05 14:30 UTC.
type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, 3, 5, 14, 30, 0, 0, time.UTC)

type stubSheet struct {
	table *types.SheetTable
	err   error
}

func (s *stubSheet) FetchTable(context.Context) (*types.SheetTable, error) {
	return s.table, s.err
}

type stubCalendar struct {
	name   string
	events []types.Event
	err    error
}

func (c *stubCalendar) Name() string { return c.name }

func (c *stubCalendar) FetchEvents(context.Context, time.Time, time.Time) ([]types.Event, error) {
	return c.events, c.err
}

type stubService struct {
	calendars map[string]*stubCalendar
	calls     map[string]int
	panicOn   string
}

func (s *stubService) GetCalendarByID(_ context.Context, id string) (types.Calendar, error) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[id]++
	if id == s.panicOn {
		panic("calendar service wedged")
	}
	cal, ok := s.calendars[id]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar, "calendar feed not found: "+id, nil)
	}
	return cal, nil
}

type stubRenderer struct{}

func (stubRenderer) RenderDigest(d types.DigestData) (types.RenderedMessage, error) {
	return types.RenderedMessage{Text: "digest for " + d.RecipientName}, nil
}

func (stubRenderer) RenderErrorNotice(d types.NoticeData) (types.RenderedMessage, error) {
	return types.RenderedMessage{Text: "notice for " + d.RecipientName}, nil
}

type recordingChannel struct {
	name string
	sent []types.OutboundMessage
	err  error
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, msg types.OutboundMessage) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func sheetOf(rows ...[]string) *types.SheetTable {
	return &types.SheetTable{
		Header: []string{"Recipient Email", "Calendar ID", "Status", "Frequency"},
		Rows:   rows,
	}
}

func newTestRunner(sheet types.SheetSource, svc types.CalendarService, primary, fallback *recordingChannel) *Runner {
	return &Runner{
		Sheet:     sheet,
		Calendars: svc,
		Renderer:  stubRenderer{},
		Primary:   primary,
		Fallback:  fallback,
		Clock:     fixedClock{now: testNow},
		Loc:       time.UTC,
		Log:       nopLogger{},
		AdminAddr: "admin@example.com",
		RetryOptions: []retry.Option{
			retry.WithSleepFunc(func(time.Duration) {}),
			retry.WithJitterFunc(func() time.Duration { return 0 }),
		},
	}
}

func TestRun_SharedCalendarFetchedOnce(t *testing.T) {
	sheet := &stubSheet{table: sheetOf(
		[]string{"ann@example.com", "team@example.com", "", "daily"},
		[]string{"bob@example.com", "team@example.com", "", "weekdays"},
		[]string{"carol@example.com", "team@example.com", "disabled", "daily"},
	)}
	svc := &stubService{calendars: map[string]*stubCalendar{
		"team@example.com": {name: "Team Calendar", events: []types.Event{{
			Title:     "Standup",
			StartTime: testNow.Add(time.Hour),
			EndTime:   testNow.Add(2 * time.Hour),
		}}},
	}}
	primary := &recordingChannel{name: "primary"}
	fallback := &recordingChannel{name: "fallback"}

	summary := newTestRunner(sheet, svc, primary, fallback).Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.EmailsSent)
	assert.Equal(t, 1, summary.CalendarsProcessed)
	assert.Equal(t, 1, svc.calls["team@example.com"], "shared calendar fetched exactly once")

	// Two digests plus the admin report, all on the primary channel.
	require.Len(t, primary.sent, 3)
	assert.Equal(t, "ann@example.com", primary.sent[0].To)
	assert.Equal(t, "bob@example.com", primary.sent[1].To)
	assert.Equal(t, "admin@example.com", primary.sent[2].To)
	assert.Contains(t, primary.sent[2].Subject, "SUCCESS")
	assert.Contains(t, primary.sent[2].Body, "Emails sent:         2")
	assert.Empty(t, fallback.sent)
}

func TestRun_SheetFailureAbortsButReports(t *testing.T) {
	sheet := &stubSheet{err: types.NewAppError(types.ErrCodeConfigSourceUnavailable, "sheet fetch failed", nil)}
	primary := &recordingChannel{name: "primary"}

	summary := newTestRunner(sheet, &stubService{}, primary, &recordingChannel{name: "fallback"}).Run(context.Background())

	assert.False(t, summary.Success)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "Loading recipient sheet", summary.Errors[0].Context)

	require.Len(t, primary.sent, 1)
	assert.Equal(t, "admin@example.com", primary.sent[0].To)
	assert.Contains(t, primary.sent[0].Subject, "COMPLETED WITH ERRORS")
}

func TestRun_MissingColumnAborts(t *testing.T) {
	sheet := &stubSheet{table: &types.SheetTable{
		Header: []string{"Recipient Email", "Frequency"},
		Rows:   [][]string{{"ann@example.com", "daily"}},
	}}
	primary := &recordingChannel{name: "primary"}

	summary := newTestRunner(sheet, &stubService{}, primary, &recordingChannel{name: "fallback"}).Run(context.Background())

	assert.False(t, summary.Success)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "Validating sheet columns", summary.Errors[0].Context)
}

func TestRun_FailedCalendarDegradesToNotice(t *testing.T) {
	sheet := &stubSheet{table: sheetOf(
		[]string{"ann@example.com", "broken@example.com", "", "daily"},
	)}
	svc := &stubService{calendars: map[string]*stubCalendar{}}
	primary := &recordingChannel{name: "primary"}

	summary := newTestRunner(sheet, svc, primary, &recordingChannel{name: "fallback"}).Run(context.Background())

	assert.False(t, summary.Success)
	assert.Equal(t, 1, summary.EmailsSent, "the error notice still goes out")

	require.Len(t, primary.sent, 2)
	assert.Contains(t, primary.sent[0].Subject, "Calendar Access Issue")
	assert.True(t, strings.Contains(primary.sent[0].Body, "notice for"))
}

func TestRun_PanicIsRecoveredIntoReport(t *testing.T) {
	sheet := &stubSheet{table: sheetOf(
		[]string{"ann@example.com", "team@example.com", "", "daily"},
	)}
	svc := &stubService{panicOn: "team@example.com"}
	primary := &recordingChannel{name: "primary"}

	summary := newTestRunner(sheet, svc, primary, &recordingChannel{name: "fallback"}).Run(context.Background())

	assert.False(t, summary.Success)
	require.NotEmpty(t, summary.Errors)
	assert.Equal(t, "Unexpected failure", summary.Errors[len(summary.Errors)-1].Context)

	require.Len(t, primary.sent, 1)
	assert.Contains(t, primary.sent[0].Subject, "COMPLETED WITH ERRORS")
}

func TestRun_FrequencyGateSkipsOffDayRecipients(t *testing.T) {
	// testNow is a Wednesday: "fridays only" is not due.
	sheet := &stubSheet{table: sheetOf(
		[]string{"ann@example.com", "team@example.com", "", "fridays only"},
		[]string{"bob@example.com", "team@example.com", "", "weekdays"},
	)}
	svc := &stubService{calendars: map[string]*stubCalendar{
		"team@example.com": {name: "Team Calendar"},
	}}
	primary := &recordingChannel{name: "primary"}

	summary := newTestRunner(sheet, svc, primary, &recordingChannel{name: "fallback"}).Run(context.Background())

	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.EmailsSent)
	require.Len(t, primary.sent, 2)
	assert.Equal(t, "bob@example.com", primary.sent[0].To)
}
