package calendar

import (
	"time"

	"github.com/teambition/rrule-go"

	"caldigest/internal/types"
)

// maxOccurrencesPerEvent caps recurrence expansion per VEVENT so a runaway
// rule cannot flood a digest.
const maxOccurrencesPerEvent = 1000

// expandEvents turns parsed VEVENTs into concrete events overlapping the
// half-open [start, end) window. It handles single events, RRULE series,
// EXDATE exclusions and RECURRENCE-ID overrides. The second return value
// reports whether any series hit the occurrence cap.
func expandEvents(events []parsedEvent, start, end time.Time) ([]types.Event, bool) {
	overridesByUID := make(map[string][]parsedEvent)
	for _, ev := range events {
		if ev.isOverride() {
			overridesByUID[ev.uid] = append(overridesByUID[ev.uid], ev)
		}
	}

	out := make([]types.Event, 0, len(events))
	truncated := false

	for _, ev := range events {
		if ev.isOverride() {
			continue
		}
		overrides := overridesByUID[ev.uid]

		if ev.rawRRule == "" {
			out = append(out, expandSingle(ev, overrides, start, end)...)
			continue
		}

		occ, hitCap := expandRecurring(ev, overrides, start, end)
		if hitCap {
			truncated = true
		}
		out = append(out, occ...)
	}

	return out, truncated
}

func expandSingle(ev parsedEvent, overrides []parsedEvent, start, end time.Time) []types.Event {
	evStart, evEnd := ev.start, ev.end
	if o, ok := overrideFor(overrides, evStart); ok {
		ev = o
		evStart, evEnd = o.start, o.end
	}

	if !overlaps(evStart, evEnd, start, end) {
		return nil
	}
	return []types.Event{makeEvent(ev, evStart, evEnd)}
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, start, end time.Time) ([]types.Event, bool) {
	r, err := rrule.StrToRRule(ev.rawRRule)
	if err != nil {
		// An unparseable rule degrades to the base instance.
		return expandSingle(ev, overrides, start, end), false
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	loc := ev.start.Location()
	occTimes := set.Between(start.In(loc), end.In(loc), true)

	hitCap := false
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.end.Sub(ev.start)
	out := make([]types.Event, 0, len(occTimes))

	for _, occStart := range occTimes {
		// Between is inclusive on both bounds; the window is half-open.
		if !occStart.Before(end) {
			continue
		}

		var occEnd time.Time
		if ev.allDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(),
				0, 0, 0, 0, occStart.Location())
			occEnd = occStart.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(dur)
		}

		instance := ev
		if o, ok := overrideFor(overrides, occStart); ok {
			instance = o
			occStart, occEnd = o.start, o.end
		}

		out = append(out, makeEvent(instance, occStart, occEnd))
	}

	return out, hitCap
}

// overrideFor finds the override whose RECURRENCE-ID matches occStart.
func overrideFor(overrides []parsedEvent, occStart time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.recurrenceID != nil && ov.recurrenceID.Equal(occStart) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

// overlaps reports whether [evStart, evEnd) intersects [winStart, winEnd).
// Zero-length events count when their instant lies inside the window.
func overlaps(evStart, evEnd, winStart, winEnd time.Time) bool {
	if !evStart.Before(winEnd) {
		return false
	}
	if evEnd.After(winStart) {
		return true
	}
	return evEnd.Equal(evStart) && !evStart.Before(winStart)
}

func makeEvent(ev parsedEvent, start, end time.Time) types.Event {
	return types.Event{
		Title:       ev.summary,
		StartTime:   start,
		EndTime:     end,
		Location:    ev.location,
		Description: ev.description,
	}
}
