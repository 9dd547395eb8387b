// Package delivery turns reconciled per-recipient calendar data into
// outbound messages and sends them in paced batches with a fallback
// channel.
package delivery

import (
	"strings"

	"caldigest/internal/types"
)

// FilterEvents applies the recipient's keyword tokens to an event list.
// Tokens are expected pre-normalized (trimmed, lower-cased). A leading '-'
// marks an exclude token; everything else is an include token.
//
// An event's searchable text is the lower-cased space-joined concatenation
// of title, description, and location. An event is retained iff every
// include token is a substring of that text (includes are conjunctive, not
// any-of) and no exclude token is.
//
// An empty or nil token list is an identity pass-through.
func FilterEvents(events []types.Event, keywords []string) []types.Event {
	if len(keywords) == 0 {
		return events
	}

	var includes, excludes []string
	for _, kw := range keywords {
		if rest, ok := strings.CutPrefix(kw, "-"); ok {
			if rest != "" {
				excludes = append(excludes, rest)
			}
			continue
		}
		includes = append(includes, kw)
	}

	var out []types.Event
	for _, ev := range events {
		text := strings.ToLower(ev.Title + " " + ev.Description + " " + ev.Location)

		if containsAll(text, includes) && !containsAny(text, excludes) {
			out = append(out, ev)
		}
	}
	return out
}

// containsAll reports whether text contains every token. An empty token
// list matches everything.
func containsAll(text string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(text, tok) {
			return false
		}
	}
	return true
}

// containsAny reports whether text contains at least one token.
func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
