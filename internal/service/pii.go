package service

import (
	"regexp"
	"strings"
)

// Patterns for values that look like raw personal data. This scan is a
// last-resort safety net against client misuse, not the primary privacy
// mechanism; anything matching is rejected outright rather than sanitized,
// so a leaking client integration surfaces as hard errors instead of
// silently shipping stripped data.
var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)
)

// minPhoneDigits is the digit count below which a phonePattern match is
// treated as an ordinary number, not a phone number
const minPhoneDigits = 9

// looksLikePII reports whether a single string value resembles raw
// personal data
func looksLikePII(value string) bool {
	if emailPattern.MatchString(value) {
		return true
	}
	if ipv4Pattern.MatchString(value) {
		return true
	}
	for _, match := range phonePattern.FindAllString(value, -1) {
		if countDigits(match) >= minPhoneDigits {
			return true
		}
	}
	return false
}

// scanForPII walks an arbitrary decoded-JSON value and reports whether any
// string in it resembles raw personal data. Keys are scanned as well as
// values ("email" keyed to an address would already trip on the value, but
// a key like "user@example.com" should too).
func scanForPII(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return looksLikePII(v)
	case map[string]interface{}:
		for key, nested := range v {
			if looksLikePII(key) || scanForPII(nested) {
				return true
			}
		}
	case []interface{}:
		for _, nested := range v {
			if scanForPII(nested) {
				return true
			}
		}
	}
	return false
}

func countDigits(s string) int {
	return len(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s))
}
