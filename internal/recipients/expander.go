// Package recipients turns raw configuration sheet rows into validated
// per-calendar recipient records and decides, per recipient, whether and
// for which date window today's run should produce a digest.
package recipients

import (
	"strings"

	"caldigest/internal/types"
)

// statusDisabled is the Status cell value (case-insensitive) that drops a row.
const statusDisabled = "disabled"

// Expander expands sheet rows into RecipientRecords. Rows and calendar
// entries that fail validation are dropped with a log line, never an error;
// the input table is not mutated.
type Expander struct {
	Log types.Logger
}

// NewExpander creates an Expander.
func NewExpander(log types.Logger) *Expander {
	return &Expander{Log: log}
}

// ValidateColumns checks that every required column is present in the
// header. A missing column is a configuration error fatal to the run.
func ValidateColumns(table *types.SheetTable) error {
	idx := table.ColumnIndex()
	for _, col := range types.RequiredColumns {
		if _, ok := idx[col]; !ok {
			return types.NewAppError(types.ErrCodeConfigMissingColumn,
				"configuration sheet is missing required column "+col, nil)
		}
	}
	return nil
}

// Expand produces the flat ordered list of RecipientRecords: original row
// order first, calendar fan-out order within a row. A row with N valid
// comma-separated calendar ids yields N records sharing email and
// preferences.
func (e *Expander) Expand(table *types.SheetTable) []types.RecipientRecord {
	idx := table.ColumnIndex()
	var records []types.RecipientRecord

	for rowNum, row := range table.Rows {
		email := cell(row, idx, types.ColRecipientEmail)
		calCell := cell(row, idx, types.ColCalendarID)

		if email == "" || calCell == "" {
			e.Log.Info("skipping row with missing email or calendar id", "row", rowNum+2)
			continue
		}

		if strings.EqualFold(cell(row, idx, types.ColStatus), statusDisabled) {
			e.Log.Info("skipping disabled row", "row", rowNum+2, "email", types.RedactAddress(email))
			continue
		}

		if err := types.ValidateAddress(email); err != nil {
			e.Log.Warn("skipping row with invalid email",
				"row", rowNum+2,
				"email", types.RedactAddress(email),
				"error", err.Error(),
			)
			continue
		}

		calendarIDs := e.splitCalendarIDs(calCell, rowNum)
		if len(calendarIDs) == 0 {
			e.Log.Warn("skipping row with no valid calendar ids", "row", rowNum+2, "email", types.RedactAddress(email))
			continue
		}

		prefs := parsePreferences(row, idx)

		total := len(calendarIDs)
		for i, calID := range calendarIDs {
			records = append(records, types.RecipientRecord{
				Email:           email,
				CalendarID:      calID,
				Preferences:     prefs,
				IsMultiCalendar: total > 1,
				CalendarIndex:   i,
				TotalCalendars:  total,
			})
		}
	}

	return records
}

// splitCalendarIDs splits a calendar cell on commas and validates each
// piece independently. An invalid piece is dropped without discarding its
// siblings.
func (e *Expander) splitCalendarIDs(calCell string, rowNum int) []string {
	var ids []string
	for _, piece := range strings.Split(calCell, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		if err := types.ValidateAddress(piece); err != nil {
			e.Log.Warn("dropping invalid calendar id",
				"row", rowNum+2,
				"calendar_id", types.RedactAddress(piece),
				"error", err.Error(),
			)
			continue
		}
		ids = append(ids, piece)
	}
	return ids
}

// parsePreferences reads the optional columns permissively: an unknown or
// absent column leaves the preference absent so downstream defaulting
// applies uniformly.
func parsePreferences(row []string, idx map[string]int) types.Preferences {
	prefs := types.Preferences{
		Timezone:  cell(row, idx, types.ColTimezone),
		DateRange: cell(row, idx, types.ColDateRange),
		Frequency: cell(row, idx, types.ColFrequency),
	}

	if tf := cell(row, idx, types.ColTimeFormat); tf != "" {
		switch {
		case strings.Contains(tf, "24"):
			use24 := true
			prefs.Use24Hour = &use24
		case strings.Contains(tf, "12"):
			use24 := false
			prefs.Use24Hour = &use24
		}
	}

	if kw := cell(row, idx, types.ColFilterKeywords); kw != "" {
		prefs.FilterKeywords = normalizeKeywords(kw)
	}

	return prefs
}

// normalizeKeywords parses a comma-separated keyword cell into a trimmed,
// lower-cased, empty-removed ordered list. Returns nil when nothing
// survives so the filter's no-op fast path applies.
func normalizeKeywords(kw string) []string {
	var out []string
	for _, piece := range strings.Split(kw, ",") {
		piece = strings.ToLower(strings.TrimSpace(piece))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// cell returns the trimmed value of the named column in the row, or ""
// when the column is unknown or the row is too short.
func cell(row []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
