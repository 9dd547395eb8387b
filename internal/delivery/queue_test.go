package delivery

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caldigest/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)      {}
func (nopLogger) Warn(string, ...any)      {}
func (nopLogger) Error(string, ...any)     {}
func (nopLogger) With(...any) types.Logger { return nopLogger{} }

// mockRenderer records the last digest input and returns canned bodies.
type mockRenderer struct {
	lastDigest types.DigestData
	lastNotice types.NoticeData
	digestErr  error
}

func (m *mockRenderer) RenderDigest(d types.DigestData) (types.RenderedMessage, error) {
	m.lastDigest = d
	if m.digestErr != nil {
		return types.RenderedMessage{}, m.digestErr
	}
	return types.RenderedMessage{
		Text: fmt.Sprintf("digest with %d events", len(d.Events)),
		HTML: "<p>digest</p>",
	}, nil
}

func (m *mockRenderer) RenderErrorNotice(d types.NoticeData) (types.RenderedMessage, error) {
	m.lastNotice = d
	return types.RenderedMessage{Text: "notice"}, nil
}

func at(h, m int) time.Time {
	return time.Date(2025, 3, 5, h, m, 0, 0, time.UTC)
}

func todayInterval() types.DateInterval {
	return types.DateInterval{
		Start:       time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC),
		Description: "today",
	}
}

func TestBuild_MergesSortsAndFilters(t *testing.T) {
	r := &mockRenderer{}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	d := &types.RecipientDelivery{
		Recipient: types.RecipientRecord{
			Email: "ann@example.com",
			Preferences: types.Preferences{
				FilterKeywords: []string{"-skip"},
			},
		},
		Interval: todayInterval(),
		CalendarSources: []types.CalendarSource{
			{CalendarName: "Work", Succeeded: true, Events: []types.Event{
				{Title: "Late work", StartTime: at(16, 0)},
				{Title: "skip me", StartTime: at(8, 0)},
			}},
			{CalendarName: "Home", Succeeded: true, Events: []types.Event{
				{Title: "Early home", StartTime: at(7, 0)},
			}},
		},
	}

	queue := q.Build([]*types.RecipientDelivery{d})
	require.Len(t, queue, 1)

	msg := queue[0]
	assert.Equal(t, "ann@example.com", msg.To)
	assert.Equal(t, "Your Events for the Day", msg.Subject)
	assert.Equal(t, "digest with 2 events", msg.Body)
	assert.Equal(t, "<p>digest</p>", msg.HTMLBody)

	// Filtered out "skip me", sorted ascending by start time.
	require.Len(t, r.lastDigest.Events, 2)
	assert.Equal(t, "Early home", r.lastDigest.Events[0].Title)
	assert.Equal(t, "Late work", r.lastDigest.Events[1].Title)
	assert.Equal(t, "2 calendars", r.lastDigest.CalendarName)
	assert.Equal(t, "Ann", r.lastDigest.RecipientName)
}

func TestBuild_SingleCalendarKeepsName(t *testing.T) {
	r := &mockRenderer{}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	d := &types.RecipientDelivery{
		Recipient: types.RecipientRecord{Email: "bob.smith@example.com"},
		Interval:  todayInterval(),
		CalendarSources: []types.CalendarSource{
			{CalendarName: "Team Calendar", Succeeded: true},
		},
	}

	q.Build([]*types.RecipientDelivery{d})
	assert.Equal(t, "Team Calendar", r.lastDigest.CalendarName)
	assert.Equal(t, "Bob Smith", r.lastDigest.RecipientName)
}

func TestBuild_SubjectFromDescription(t *testing.T) {
	r := &mockRenderer{}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	d := &types.RecipientDelivery{
		Recipient: types.RecipientRecord{Email: "ann@example.com"},
		Interval:  types.DateInterval{Description: "the next 3 days"},
		CalendarSources: []types.CalendarSource{
			{CalendarName: "Work", Succeeded: true},
		},
	}

	queue := q.Build([]*types.RecipientDelivery{d})
	require.Len(t, queue, 1)
	assert.Equal(t, "Your Events The next 3 days", queue[0].Subject)
}

func TestBuild_ErrorNoticeWhenAllSourcesFailed(t *testing.T) {
	r := &mockRenderer{}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	d := &types.RecipientDelivery{
		Recipient: types.RecipientRecord{Email: "ann@example.com"},
		HasErrors: true,
		Errors: []types.DeliveryError{
			{CalendarID: "gone@example.com", Message: "calendar not found"},
		},
	}

	queue := q.Build([]*types.RecipientDelivery{d})
	require.Len(t, queue, 1)
	assert.Equal(t, errorNoticeSubject, queue[0].Subject)
	assert.Equal(t, "notice", queue[0].Body)
	require.Len(t, r.lastNotice.Errors, 1)
	assert.Equal(t, "gone@example.com", r.lastNotice.Errors[0].CalendarID)
}

func TestBuild_RendererFailureFallsBackToPlainBody(t *testing.T) {
	r := &mockRenderer{digestErr: errors.New("template exploded")}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	d := &types.RecipientDelivery{
		Recipient: types.RecipientRecord{Email: "ann@example.com"},
		Interval:  todayInterval(),
		CalendarSources: []types.CalendarSource{
			{CalendarName: "Work", Succeeded: true, Events: []types.Event{
				{Title: "Standup", StartTime: at(9, 0)},
			}},
		},
	}

	queue := q.Build([]*types.RecipientDelivery{d})
	require.Len(t, queue, 1)
	assert.Contains(t, queue[0].Body, "1 event(s) today")
	assert.Contains(t, queue[0].Body, "Standup")
	assert.Empty(t, queue[0].HTMLBody)
}

func TestBuild_PreservesDeliveryOrder(t *testing.T) {
	r := &mockRenderer{}
	q := &QueueBuilder{Renderer: r, Log: nopLogger{}}

	mk := func(email string) *types.RecipientDelivery {
		return &types.RecipientDelivery{
			Recipient:       types.RecipientRecord{Email: email},
			Interval:        todayInterval(),
			CalendarSources: []types.CalendarSource{{CalendarName: "C", Succeeded: true}},
		}
	}

	queue := q.Build([]*types.RecipientDelivery{mk("z@example.com"), mk("a@example.com")})
	require.Len(t, queue, 2)
	assert.Equal(t, "z@example.com", queue[0].To)
	assert.Equal(t, "a@example.com", queue[1].To)
}

func TestSubjectFor_Capitalization(t *testing.T) {
	assert.Equal(t, "Your Events for the Day", subjectFor(types.DateInterval{Description: "today"}))
	assert.Equal(t, "Your Events for the Day", subjectFor(types.DateInterval{}))
	assert.Equal(t, "Your Events Tomorrow", subjectFor(types.DateInterval{Description: "tomorrow"}))
	assert.Equal(t, "Your Events Today (weekdays only)", subjectFor(types.DateInterval{Description: "today (weekdays only)"}))
}
