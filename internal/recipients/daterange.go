package recipients

import (
	"strings"
	"time"

	"caldigest/internal/types"
)

// rangeSpec resolves one date-range preference to a concrete window. The
// window function receives midnight today in the run location; intervals
// are always half-open [start, end).
type rangeSpec struct {
	description string
	window      func(midnight time.Time) (start, end time.Time)
}

// rangeSpecs enumerates the supported date-range preferences. Aliases map
// to the same spec; anything not listed behaves exactly as "today".
//
// "weekdays" keeps today's window on purpose: the weekday restriction is
// enforced by the frequency gate, not by narrowing the interval, so
// "weekdays" and "today" share a group key and a single fetch.
var rangeSpecs = map[string]rangeSpec{
	"today": {
		description: "today",
		window: func(m time.Time) (time.Time, time.Time) {
			return m, m.AddDate(0, 0, 1)
		},
	},
	"tomorrow": {
		description: "tomorrow",
		window: func(m time.Time) (time.Time, time.Time) {
			return m.AddDate(0, 0, 1), m.AddDate(0, 0, 2)
		},
	},
	"next 3 days": {
		description: "the next 3 days",
		window: func(m time.Time) (time.Time, time.Time) {
			return m, m.AddDate(0, 0, 3)
		},
	},
	"this week": {
		description: "this week",
		window: func(m time.Time) (time.Time, time.Time) {
			// Week starts on Sunday.
			start := m.AddDate(0, 0, -int(m.Weekday()))
			return start, start.AddDate(0, 0, 7)
		},
	},
	"next week": {
		description: "next week",
		window: func(m time.Time) (time.Time, time.Time) {
			start := m.AddDate(0, 0, 7-int(m.Weekday()))
			return start, start.AddDate(0, 0, 7)
		},
	},
	"weekdays": {
		description: "today (weekdays only)",
		window: func(m time.Time) (time.Time, time.Time) {
			return m, m.AddDate(0, 0, 1)
		},
	},
}

// rangeAliases maps alternate spellings onto canonical spec keys.
var rangeAliases = map[string]string{
	"next3days":     "next 3 days",
	"thisweek":      "this week",
	"nextweek":      "next week",
	"weekdays only": "weekdays",
}

// Resolver maps date-range preference strings to concrete intervals
// anchored at midnight today in the run location.
type Resolver struct {
	Clock types.Clock
	Loc   *time.Location
}

// NewResolver creates a Resolver for the given location.
func NewResolver(clock types.Clock, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{Clock: clock, Loc: loc}
}

// Resolve returns the DateInterval for a preference string. Empty or
// unrecognized preferences resolve as "today".
func (r *Resolver) Resolve(preference string) types.DateInterval {
	key := strings.ToLower(strings.TrimSpace(preference))
	if canonical, ok := rangeAliases[key]; ok {
		key = canonical
	}
	spec, ok := rangeSpecs[key]
	if !ok {
		spec = rangeSpecs["today"]
	}

	now := r.Clock.Now().In(r.Loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.Loc)

	start, end := spec.window(midnight)
	return types.DateInterval{
		Start:       start,
		End:         end,
		Description: spec.description,
	}
}
