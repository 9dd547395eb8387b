package delivery

import (
	"fmt"
	"sort"
	"strings"

	"caldigest/internal/types"
)

// defaultSubject is used when the resolved window is the plain default day.
const defaultSubject = "Your Events for the Day"

// errorNoticeSubject heads the message sent when every calendar source for
// a recipient failed.
const errorNoticeSubject = "Your Events - Calendar Access Issue"

// QueueBuilder turns reconciled recipient deliveries into the ordered
// outbound message queue.
type QueueBuilder struct {
	Renderer types.DigestRenderer
	Log      types.Logger
}

// Build produces one OutboundMessage per reconciled recipient, preserving
// iteration order. Recipients with at least one successful source get a
// digest; recipients with none get an error notice summarizing the failure
// reasons.
func (q *QueueBuilder) Build(deliveries []*types.RecipientDelivery) []types.OutboundMessage {
	var queue []types.OutboundMessage

	for _, d := range deliveries {
		if len(d.CalendarSources) == 0 {
			queue = append(queue, q.buildErrorNotice(d))
			continue
		}
		queue = append(queue, q.buildDigest(d))
	}

	return queue
}

// buildDigest merges the recipient's sources, filters and orders events,
// and renders the digest bodies.
func (q *QueueBuilder) buildDigest(d *types.RecipientDelivery) types.OutboundMessage {
	var merged []types.Event
	for _, src := range d.CalendarSources {
		merged = append(merged, src.Events...)
	}

	if len(d.Recipient.Preferences.FilterKeywords) > 0 {
		merged = FilterEvents(merged, d.Recipient.Preferences.FilterKeywords)
	}

	// Stable: events starting together keep source-merge order.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})

	calendarName := d.CalendarSources[0].CalendarName
	if n := len(d.CalendarSources); n > 1 {
		calendarName = fmt.Sprintf("%d calendars", n)
	}

	rendered, err := q.Renderer.RenderDigest(types.DigestData{
		RecipientName: displayName(d.Recipient.Email),
		CalendarName:  calendarName,
		Events:        merged,
		Preferences:   d.Recipient.Preferences,
		Interval:      d.Interval,
	})
	if err != nil {
		q.Log.Error("digest rendering failed, using plain fallback body",
			"recipient", types.RedactAddress(d.Recipient.Email),
			"error", err.Error(),
		)
		rendered = types.RenderedMessage{Text: fallbackBody(merged, d.Interval)}
	}

	return types.OutboundMessage{
		To:       d.Recipient.Email,
		Subject:  subjectFor(d.Interval),
		Body:     rendered.Text,
		HTMLBody: rendered.HTML,
	}
}

// buildErrorNotice renders the plain explanatory message for a recipient
// whose calendars all failed.
func (q *QueueBuilder) buildErrorNotice(d *types.RecipientDelivery) types.OutboundMessage {
	rendered, err := q.Renderer.RenderErrorNotice(types.NoticeData{
		RecipientName: displayName(d.Recipient.Email),
		Errors:        d.Errors,
	})
	if err != nil {
		q.Log.Error("error-notice rendering failed, using plain fallback body",
			"recipient", types.RedactAddress(d.Recipient.Email),
			"error", err.Error(),
		)
		var b strings.Builder
		b.WriteString("We could not access your calendars for today's summary.\n")
		for _, e := range d.Errors {
			fmt.Fprintf(&b, "  %s: %s\n", e.CalendarID, e.Message)
		}
		rendered = types.RenderedMessage{Text: b.String()}
	}

	return types.OutboundMessage{
		To:       d.Recipient.Email,
		Subject:  errorNoticeSubject,
		Body:     rendered.Text,
		HTMLBody: rendered.HTML,
	}
}

// subjectFor derives the subject line from the window description:
// the default day keeps the fixed subject, anything else appends the
// capitalized description.
func subjectFor(interval types.DateInterval) string {
	desc := interval.Description
	if desc == "" || desc == "today" {
		return defaultSubject
	}
	return "Your Events " + capitalize(desc)
}

// capitalize upper-cases the first rune only.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// displayName derives a greeting name from the address local part:
// dots and underscores become spaces, words are title-cased.
func displayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)

	words := strings.Fields(local)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	if len(words) == 0 {
		return email
	}
	return strings.Join(words, " ")
}

// fallbackBody is the minimal plain-text digest used when the renderer
// collaborator fails; delivery still happens.
func fallbackBody(events []types.Event, interval types.DateInterval) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d event(s) %s.\n", len(events), interval.Description)
	for _, ev := range events {
		fmt.Fprintf(&b, "  %s - %s\n", ev.StartTime.Format("Mon 15:04"), ev.Title)
	}
	return b.String()
}
