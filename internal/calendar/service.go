// Package calendar resolves calendar identifiers to published ICS feeds
// and normalizes their events for the digest pipeline. A calendar id is
// substituted into a URL template, the feed is fetched through the shared
// circuit-breaking client, and VEVENTs (including recurrences) are
// expanded on demand into concrete events for a fetch window.
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"caldigest/internal/external"
	"caldigest/internal/types"
)

// maxFeedBytes caps how much of a feed body is read. Feeds beyond this are
// almost certainly misconfigured URLs, not calendars.
const maxFeedBytes = 10 << 20

// Service implements types.CalendarService over ICS feeds.
type Service struct {
	base        *external.BaseClient
	urlTemplate string
	log         types.Logger
}

// NewService creates a Service. urlTemplate must contain a single %s
// placeholder for the URL-escaped calendar id.
func NewService(base *external.BaseClient, urlTemplate string, log types.Logger) *Service {
	if base == nil {
		base = external.NewBaseClient(nil, "ics-feed")
	}
	return &Service{
		base:        base,
		urlTemplate: urlTemplate,
		log:         log,
	}
}

// GetCalendarByID fetches and parses the feed for id. The returned Calendar
// holds the parsed events; FetchEvents expands them per window without
// another network round trip.
func (s *Service) GetCalendarByID(ctx context.Context, id string) (types.Calendar, error) {
	feedURL := fmt.Sprintf(s.urlTemplate, url.QueryEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			"failed to build feed request", err)
	}

	resp, err := s.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar,
			"calendar feed not found: "+id, nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar,
			fmt.Sprintf("calendar feed for %s returned %d", id, resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar,
			"failed to read calendar feed: "+id, err)
	}

	name, events, err := parseFeed(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamCalendar,
			"failed to parse calendar feed: "+id, err)
	}
	if name == "" {
		name = id
	}

	s.log.Info("calendar feed loaded", "calendar_id", id, "name", name, "vevent_count", len(events))

	return &ICSCalendar{
		id:     id,
		name:   name,
		events: events,
		log:    s.log,
	}, nil
}

// ICSCalendar is one parsed feed. Recurrence expansion happens per
// FetchEvents call so the same handle can serve different windows.
type ICSCalendar struct {
	id     string
	name   string
	events []parsedEvent
	log    types.Logger
}

// Name returns the feed's display name (X-WR-CALNAME, falling back to the
// calendar id).
func (c *ICSCalendar) Name() string { return c.name }

// FetchEvents expands the parsed VEVENTs into concrete events overlapping
// the half-open [start, end) window, ordered by start time.
func (c *ICSCalendar) FetchEvents(_ context.Context, start, end time.Time) ([]types.Event, error) {
	events, truncated := expandEvents(c.events, start, end)
	if truncated {
		c.log.Warn("recurrence expansion truncated", "calendar_id", c.id, "cap", maxOccurrencesPerEvent)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].Title < events[j].Title
		}
		return events[i].StartTime.Before(events[j].StartTime)
	})

	return events, nil
}

var (
	_ types.CalendarService = (*Service)(nil)
	_ types.Calendar        = (*ICSCalendar)(nil)
)
