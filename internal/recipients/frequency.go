package recipients

import (
	"strings"
	"time"

	"caldigest/internal/types"
)

// Gate decides whether today's run should produce output for a recipient,
// based on the Frequency preference. It runs once per RecipientRecord
// before grouping, so two recipients sharing a calendar can differ on the
// same day.
type Gate struct {
	Clock types.Clock
	Loc   *time.Location
	Log   types.Logger
}

// NewGate creates a Gate evaluating "today" in the given location.
func NewGate(clock types.Clock, loc *time.Location, log types.Logger) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	return &Gate{Clock: clock, Loc: loc, Log: log}
}

// ShouldSend maps a frequency preference to a yes/no for today. An empty
// preference defaults to daily; an unrecognized one fails open to daily
// with a warning.
func (g *Gate) ShouldSend(frequency string) bool {
	freq := strings.ToLower(strings.TrimSpace(frequency))
	if freq == "" {
		freq = "daily"
	}

	weekday := g.Clock.Now().In(g.Loc).Weekday()

	switch freq {
	case "daily":
		return true
	case "weekdays", "weekdays only":
		return weekday >= time.Monday && weekday <= time.Friday
	case "monday", "mondays only":
		return weekday == time.Monday
	case "wednesday", "wednesdays only":
		return weekday == time.Wednesday
	case "friday", "fridays only":
		return weekday == time.Friday
	case "weekends", "weekends only":
		return weekday == time.Saturday || weekday == time.Sunday
	case "never", "disabled":
		return false
	default:
		g.Log.Warn("unrecognized frequency, defaulting to daily", "frequency", freq)
		return true
	}
}
