// Package batch implements the quota-saving core of the pipeline: it
// groups recipients by (calendar, resolved window), fetches each distinct
// group exactly once, and reconciles the group results back onto
// individual recipients.
package batch

import (
	"context"
	"fmt"
	"time"

	"caldigest/internal/metrics"
	"caldigest/internal/recipients"
	"caldigest/internal/retry"
	"caldigest/internal/types"
)

// FetchSet holds the fetch results of one run keyed by group, preserving
// first-seen group order for deterministic downstream iteration.
type FetchSet struct {
	order   []types.GroupKey
	results map[types.GroupKey]*types.GroupResult
}

// Keys returns the group keys in first-seen order.
func (s *FetchSet) Keys() []types.GroupKey { return s.order }

// Result returns the GroupResult for a key, or nil if unknown.
func (s *FetchSet) Result(k types.GroupKey) *types.GroupResult { return s.results[k] }

// Len returns the number of distinct groups.
func (s *FetchSet) Len() int { return len(s.order) }

// Batcher groups gated recipients and drives the batched calendar fetch.
type Batcher struct {
	Calendars types.CalendarService
	Resolver  *recipients.Resolver
	Retry     *retry.Executor
	Tracker   *metrics.Tracker
	Log       types.Logger
}

// BuildGroups resolves each recipient's date window and groups recipients
// by exact (calendarId, startEpoch, endEpoch) key. Group order and the
// recipient order within a group both follow first appearance in the
// input. Each distinct key maps to exactly one group, which is what keeps
// a shared calendar from being fetched once per recipient.
func (b *Batcher) BuildGroups(records []types.RecipientRecord) []*types.CalendarGroup {
	byKey := make(map[types.GroupKey]*types.CalendarGroup)
	var groups []*types.CalendarGroup

	for _, rec := range records {
		interval := b.Resolver.Resolve(rec.Preferences.DateRange)
		key := types.NewGroupKey(rec.CalendarID, interval)

		group, ok := byKey[key]
		if !ok {
			group = &types.CalendarGroup{
				Key:        key,
				CalendarID: rec.CalendarID,
				Interval:   interval,
			}
			byKey[key] = group
			groups = append(groups, group)
		}
		group.Recipients = append(group.Recipients, rec)
	}

	return groups
}

// FetchAll fetches every group exactly once, each attempt wrapped in the
// retry executor. A failed group is recorded with its error and empty
// events; all its recipients inherit the same failure. The run continues
// past individual group failures.
func (b *Batcher) FetchAll(ctx context.Context, groups []*types.CalendarGroup) *FetchSet {
	set := &FetchSet{results: make(map[types.GroupKey]*types.GroupResult, len(groups))}

	for _, group := range groups {
		result := b.fetchGroup(ctx, group)
		set.order = append(set.order, group.Key)
		set.results[group.Key] = result
	}

	return set
}

// fetchGroup resolves one calendar and pulls its events for the group's
// window. On success the run counters are updated; on failure the error is
// recorded against the calendar and an empty failed result is returned.
func (b *Batcher) fetchGroup(ctx context.Context, group *types.CalendarGroup) *types.GroupResult {
	var (
		name   string
		events []types.Event
	)

	op := func(ctx context.Context) error {
		cal, err := b.Calendars.GetCalendarByID(ctx, group.CalendarID)
		if err != nil {
			return err
		}
		events, err = cal.FetchEvents(ctx, group.Interval.Start, group.Interval.End)
		if err != nil {
			return err
		}
		name = cal.Name()
		return nil
	}

	opName := fmt.Sprintf("fetch calendar %s", types.RedactAddress(group.CalendarID))
	if err := b.Retry.Do(ctx, opName, op); err != nil {
		b.Tracker.RecordError(err.Error(), "Accessing calendar "+group.CalendarID)
		b.Log.Warn("calendar group failed, recipients degrade to error notice",
			"calendar_id", types.RedactAddress(group.CalendarID),
			"window_start", group.Interval.Start.Format(time.RFC3339),
			"recipients", len(group.Recipients),
			"error", err.Error(),
		)
		return &types.GroupResult{
			CalendarName: group.CalendarID,
			Events:       []types.Event{},
			Recipients:   group.Recipients,
			Interval:     group.Interval,
			Success:      false,
			ErrorMessage: err.Error(),
		}
	}

	b.Tracker.CalendarProcessed(len(events))
	b.Log.Info("calendar group fetched",
		"calendar", name,
		"events", len(events),
		"recipients", len(group.Recipients),
	)

	return &types.GroupResult{
		CalendarName: name,
		Events:       events,
		Recipients:   group.Recipients,
		Interval:     group.Interval,
		Success:      true,
	}
}
