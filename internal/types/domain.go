// Package types holds the domain model shared across the digest pipeline:
// recipient records, fetch groups, reconciled deliveries, outbound messages,
// the application error taxonomy, and the collaborator interfaces every
// stage depends on.
package types

import (
	"fmt"
	"time"
)

// Recognized column names in the configuration sheet. The first row of the
// sheet is the header row; columns are matched by exact name.
const (
	ColRecipientEmail = "Recipient Email"
	ColCalendarID     = "Calendar ID"
	ColTimezone       = "Timezone"
	ColTimeFormat     = "Time Format"
	ColDateRange      = "Date Range"
	ColFrequency      = "Frequency"
	ColStatus         = "Status"
	ColFilterKeywords = "Filter Keywords"
)

// RequiredColumns must all be present in the sheet header. A missing column
// aborts the run before any recipient processing happens.
var RequiredColumns = []string{ColRecipientEmail, ColCalendarID}

// SheetTable is the raw configuration sheet: one header row followed by
// data rows. Rows may be ragged; missing trailing cells read as absent.
type SheetTable struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex builds a header-name to column-index map. Duplicate headers
// keep the first occurrence.
func (t *SheetTable) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	}
	return idx
}

// Preferences holds the optional per-recipient settings parsed from the
// sheet. Zero values mean "absent" so downstream defaulting applies
// uniformly: empty strings for Timezone/DateRange/Frequency, nil for
// Use24Hour and FilterKeywords. A nil FilterKeywords slice (absent cell)
// is distinct from an empty one and skips filtering entirely.
type Preferences struct {
	Timezone       string
	Use24Hour      *bool
	DateRange      string
	Frequency      string
	FilterKeywords []string
}

// RecipientRecord is one (email, calendar) pair derived from a sheet row.
// A row listing N comma-separated calendar ids expands into N records that
// share the email and preferences but carry distinct CalendarID and
// CalendarIndex values.
type RecipientRecord struct {
	Email           string
	CalendarID      string
	Preferences     Preferences
	IsMultiCalendar bool
	CalendarIndex   int
	TotalCalendars  int
}

// DateInterval is a half-open [Start, End) fetch window with a human
// description used in subject lines.
type DateInterval struct {
	Start       time.Time
	End         time.Time
	Description string
}

// Contains reports whether t falls inside the interval.
func (d DateInterval) Contains(t time.Time) bool {
	return !t.Before(d.Start) && t.Before(d.End)
}

// Event is a single calendar event as exposed by the calendar collaborator.
// The pipeline never mutates events; it only filters and orders them.
type Event struct {
	Title       string
	StartTime   time.Time
	EndTime     time.Time
	Location    string
	Description string
}

// GroupKey identifies a unique unit of fetch work: one calendar over one
// exact window. Epoch bounds rather than the preference string form the key
// on purpose: two preferences resolving to the same physical window (for
// example "today" and "weekdays") share a single fetch.
type GroupKey struct {
	CalendarID string
	StartEpoch int64
	EndEpoch   int64
}

// NewGroupKey derives the key for a calendar and resolved interval.
func NewGroupKey(calendarID string, interval DateInterval) GroupKey {
	return GroupKey{
		CalendarID: calendarID,
		StartEpoch: interval.Start.Unix(),
		EndEpoch:   interval.End.Unix(),
	}
}

// String renders the key for log output.
func (k GroupKey) String() string {
	return fmt.Sprintf("%s[%d,%d)", k.CalendarID, k.StartEpoch, k.EndEpoch)
}

// CalendarGroup collects every recipient sharing one GroupKey. Within a run
// each key maps to exactly one group and is fetched at most once.
type CalendarGroup struct {
	Key        GroupKey
	CalendarID string
	Interval   DateInterval
	Recipients []RecipientRecord
}

// GroupResult is the immutable outcome of fetching one CalendarGroup.
// On failure Events is empty and every recipient in the group inherits the
// same error; there is no per-recipient retry.
type GroupResult struct {
	CalendarName string
	Events       []Event
	Recipients   []RecipientRecord
	Interval     DateInterval
	Success      bool
	ErrorMessage string
}

// CalendarSource is one successfully fetched calendar's contribution to a
// recipient's digest.
type CalendarSource struct {
	CalendarName string
	Events       []Event
	Succeeded    bool
}

// DeliveryError records a failed calendar fetch attributed to a recipient.
type DeliveryError struct {
	CalendarID string
	Message    string
}

// RecipientDelivery is the reconciled per-recipient view of the batched
// fetch results. A recipient whose every source failed has no
// CalendarSources and HasErrors set; a recipient with at least one success
// gets a normal digest built from the succeeding sources only.
type RecipientDelivery struct {
	Recipient       RecipientRecord
	Interval        DateInterval
	CalendarSources []CalendarSource
	HasErrors       bool
	Errors          []DeliveryError
}

// OutboundMessage is a queued email ready for the send channels.
type OutboundMessage struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

// RenderedMessage is the output of the digest renderer: a plain-text body
// and an HTML body for the same content.
type RenderedMessage struct {
	Text string
	HTML string
}

// DigestData is the input to the digest renderer for a recipient with at
// least one successful calendar source.
type DigestData struct {
	RecipientName string
	CalendarName  string
	Events        []Event
	Preferences   Preferences
	Interval      DateInterval
}

// NoticeData is the input to the error-notice renderer for a recipient
// whose every calendar source failed.
type NoticeData struct {
	RecipientName string
	Errors        []DeliveryError
}
