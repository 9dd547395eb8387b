// Package render turns reconciled delivery data into email bodies. Both a
// plain-text and an HTML variant are produced from embedded templates so
// the send channels can offer multipart content.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	texttemplate "text/template"
	"time"

	"caldigest/internal/types"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

// Renderer implements types.DigestRenderer with embedded Go templates.
type Renderer struct {
	digestHTML *template.Template
	digestText *texttemplate.Template
	noticeHTML *template.Template
	noticeText *texttemplate.Template
}

// NewRenderer parses the embedded templates. Returns an error if any
// template fails to parse.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{}

	var err error
	if r.digestHTML, err = parseHTML("digest"); err != nil {
		return nil, err
	}
	if r.noticeHTML, err = parseHTML("notice"); err != nil {
		return nil, err
	}
	if r.digestText, err = parseText("digest"); err != nil {
		return nil, err
	}
	if r.noticeText, err = parseText("notice"); err != nil {
		return nil, err
	}

	return r, nil
}

func parseHTML(name string) (*template.Template, error) {
	content, err := templateFS.ReadFile("templates/" + name + ".html")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read %s.html: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse %s.html: %w", name, err)
	}
	return tmpl, nil
}

func parseText(name string) (*texttemplate.Template, error) {
	content, err := templateFS.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to read %s.txt: %w", name, err)
	}
	tmpl, err := texttemplate.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("renderer: failed to parse %s.txt: %w", name, err)
	}
	return tmpl, nil
}

// digestView is the struct passed into the digest templates.
type digestView struct {
	RecipientName string
	CalendarName  string
	RangeLabel    string
	Days          []dayView
	Empty         bool
}

type dayView struct {
	Label  string
	Events []eventView
}

type eventView struct {
	Time        string
	Title       string
	Location    string
	Description string
}

// noticeView is the struct passed into the error-notice templates.
type noticeView struct {
	RecipientName string
	Errors        []types.DeliveryError
}

// RenderDigest renders the digest bodies for one recipient. Event times
// are localized to the recipient's timezone (UTC when absent or invalid)
// and grouped per day; the time format follows the 12/24-hour preference.
func (r *Renderer) RenderDigest(d types.DigestData) (types.RenderedMessage, error) {
	loc := resolveLocation(d.Preferences.Timezone)
	use24 := d.Preferences.Use24Hour != nil && *d.Preferences.Use24Hour

	view := digestView{
		RecipientName: d.RecipientName,
		CalendarName:  d.CalendarName,
		RangeLabel:    d.Interval.Description,
		Days:          groupByDay(d.Events, loc, use24),
		Empty:         len(d.Events) == 0,
	}
	if view.RangeLabel == "" {
		view.RangeLabel = "today"
	}

	return r.execute(r.digestText, r.digestHTML, view)
}

// RenderErrorNotice renders the notice sent when every calendar source for
// a recipient failed.
func (r *Renderer) RenderErrorNotice(d types.NoticeData) (types.RenderedMessage, error) {
	view := noticeView{
		RecipientName: d.RecipientName,
		Errors:        d.Errors,
	}
	return r.execute(r.noticeText, r.noticeHTML, view)
}

func (r *Renderer) execute(text *texttemplate.Template, html *template.Template, view any) (types.RenderedMessage, error) {
	var txtBuf bytes.Buffer
	if err := text.Execute(&txtBuf, view); err != nil {
		return types.RenderedMessage{}, fmt.Errorf("renderer: failed to render %s text: %w", text.Name(), err)
	}

	var htmlBuf bytes.Buffer
	if err := html.Execute(&htmlBuf, view); err != nil {
		return types.RenderedMessage{}, fmt.Errorf("renderer: failed to render %s html: %w", html.Name(), err)
	}

	return types.RenderedMessage{
		Text: txtBuf.String(),
		HTML: htmlBuf.String(),
	}, nil
}

// resolveLocation loads the recipient timezone, falling back to UTC for
// absent or unknown names.
func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// groupByDay buckets events into calendar days in loc, preserving the
// incoming start-time order within each day.
func groupByDay(events []types.Event, loc *time.Location, use24 bool) []dayView {
	var days []dayView
	byLabel := make(map[string]int)

	for _, ev := range events {
		start := ev.StartTime.In(loc)
		label := start.Format("Monday, January 2")

		idx, ok := byLabel[label]
		if !ok {
			days = append(days, dayView{Label: label})
			idx = len(days) - 1
			byLabel[label] = idx
		}

		days[idx].Events = append(days[idx].Events, eventView{
			Time:        formatEventTime(ev, loc, use24),
			Title:       ev.Title,
			Location:    ev.Location,
			Description: ev.Description,
		})
	}

	return days
}

// formatEventTime renders an event's time span. Midnight-to-midnight
// events read as all-day.
func formatEventTime(ev types.Event, loc *time.Location, use24 bool) string {
	start := ev.StartTime.In(loc)
	end := ev.EndTime.In(loc)

	if isAllDay(start, end) {
		return "All day"
	}

	layout := "3:04 PM"
	if use24 {
		layout = "15:04"
	}
	if !end.After(start) {
		return start.Format(layout)
	}
	return start.Format(layout) + " - " + end.Format(layout)
}

func isAllDay(start, end time.Time) bool {
	if start.Hour() != 0 || start.Minute() != 0 || start.Second() != 0 {
		return false
	}
	dur := end.Sub(start)
	return dur >= 24*time.Hour && dur%(24*time.Hour) == 0
}

// Compile-time assertion that Renderer implements types.DigestRenderer.
var _ types.DigestRenderer = (*Renderer)(nil)
