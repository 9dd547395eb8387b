package types

import (
	"fmt"
	"regexp"
	"strings"
)

// localPartPattern matches a local part of alphanumerics with interior
// '.', '_', '+', '-'. First and last characters must be alphanumeric.
// Doubled dots are rejected separately since regex alternation for that
// rule is unreadable.
var localPartPattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._+-]*[A-Za-z0-9])?$`)

// domainLabelPattern matches one domain label of alphanumerics and hyphens.
var domainLabelPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// tldPattern matches the final domain label: at least two letters.
var tldPattern = regexp.MustCompile(`^[A-Za-z]{2,}$`)

// ValidateAddress checks a string against the address-shape grammar used
// for both recipient emails and calendar identifiers:
//
//   - exactly one '@'
//   - local part of alphanumerics with interior '.', '_', '+', '-';
//     no leading, trailing, or doubled dot
//   - domain labels of alphanumerics/hyphens separated by dots
//   - final label of at least two letters
//
// The grammar is deliberately stricter than RFC 5322 parsing: sheet cells
// holding anything unusual are dropped rather than guessed at.
func ValidateAddress(s string) error {
	at := strings.Count(s, "@")
	if at != 1 {
		return fmt.Errorf("address %q: expected exactly one '@', found %d", s, at)
	}

	parts := strings.SplitN(s, "@", 2)
	local, domain := parts[0], parts[1]

	if local == "" {
		return fmt.Errorf("address %q: empty local part", s)
	}
	if strings.Contains(local, "..") {
		return fmt.Errorf("address %q: doubled dot in local part", s)
	}
	if !localPartPattern.MatchString(local) {
		return fmt.Errorf("address %q: invalid local part", s)
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("address %q: domain needs at least two labels", s)
	}
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("address %q: empty domain label", s)
		}
		if !domainLabelPattern.MatchString(label) {
			return fmt.Errorf("address %q: invalid domain label %q", s, label)
		}
	}
	if !tldPattern.MatchString(labels[len(labels)-1]) {
		return fmt.Errorf("address %q: final domain label must be at least two letters", s)
	}

	return nil
}

// IsValidAddress is the boolean form of ValidateAddress.
func IsValidAddress(s string) bool {
	return ValidateAddress(s) == nil
}

// RedactAddress masks an email address for safe logging by replacing all
// but the first character of the local part. "john@example.com" becomes
// "j***@example.com". Strings without an '@' are masked entirely.
func RedactAddress(addr string) string {
	if addr == "" {
		return ""
	}
	parts := strings.SplitN(addr, "@", 2)
	if len(parts) != 2 {
		return "***"
	}
	if parts[0] == "" {
		return "***@" + parts[1]
	}
	return string(parts[0][0]) + "***@" + parts[1]
}
