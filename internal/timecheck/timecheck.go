// Package timecheck validates the timestamp and timezone strings exchanged with
// callers and with the model.
package timecheck

import (
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
)

// ISOLayout is the only timestamp shape accepted from callers:
// YYYY-MM-DDTHH:MM:SS followed by a signed numeric offset.
const ISOLayout = "2006-01-02T15:04:05-07:00"

var (
	isoPattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}[+-]\d{2}:\d{2}$`)
	offsetPattern = regexp.MustCompile(`T\d{2}:\d{2}(:\d{2}(\.\d+)?)?[+-]\d{2}:?\d{2}$`)
	zonePattern   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+\-]*(/[A-Za-z0-9][A-Za-z0-9_+\-]*)+$`)
)

// ParseISO8601WithOffset parses a caller timestamp. It is strict: the input
// must match ISOLayout exactly and denote a real calendar instant
// (2025-02-30 is rejected).
func ParseISO8601WithOffset(s string) (time.Time, error) {
	if !isoPattern.MatchString(s) {
		return time.Time{}, &time.ParseError{Layout: ISOLayout, Value: s, Message: ": missing numeric UTC offset"}
	}
	return time.Parse(ISOLayout, s)
}

// ParseInstant parses a timestamp produced by the model. It accepts any
// RFC 3339 form, and falls back to zone-less local forms interpreted in loc so
// that a missing offset can be reported separately by HasExplicitOffset.
func ParseInstant(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	var lastErr error
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02"} {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// HasExplicitOffset reports whether the time-of-day part of s is followed by a
// signed numeric UTC offset. A bare "Z" does not count.
func HasExplicitOffset(s string) bool {
	return offsetPattern.MatchString(strings.TrimSpace(s))
}

// IsValidTimezone reports whether tz is a loadable IANA identifier in
// Region/City form. "UTC" is the single accepted identifier without a slash.
func IsValidTimezone(tz string) bool {
	if tz == "" {
		return false
	}
	if tz == "UTC" {
		return true
	}
	if !zonePattern.MatchString(tz) {
		return false
	}
	_, err := time.LoadLocation(tz)
	return err == nil
}

// LoadTimezone returns the location for a validated identifier.
func LoadTimezone(tz string) (*time.Location, error) {
	return time.LoadLocation(tz)
}

// FormatOffset renders t in ISOLayout, which always carries a numeric offset.
func FormatOffset(t time.Time) string {
	return t.Format(ISOLayout)
}
