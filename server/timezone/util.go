// Package timezone resolves the reference time that relative dates in a request are read against.
package timezone

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimezone parses an IANA timezone identifier (e.g., "Asia/Tokyo").
// An empty identifier yields fallback. If the timezone is invalid, returns fallback and an error.
func ParseTimezone(tz string, fallback *time.Location) (*time.Location, error) {
	if fallback == nil {
		fallback = time.UTC
	}
	tz = strings.TrimSpace(tz)
	switch tz {
	case "":
		return fallback, nil
	case "UTC":
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fallback, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// IsValidTimezone checks if a timezone identifier is valid.
func IsValidTimezone(tz string) bool {
	_, err := ParseTimezone(tz, nil)
	return err == nil
}

// ReferenceTime returns the instant relative dates are resolved against.
// An empty value means now; otherwise value must be RFC 3339.
// The result is expressed in loc so the weekday the model sees is the user's.
func ReferenceTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return NowInTimezone(loc), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid reference time %q: %w", value, err)
	}
	return t.In(loc), nil
}

// NowInTimezone returns the current time in the given timezone.
func NowInTimezone(tz *time.Location) time.Time {
	if tz == nil {
		tz = time.UTC
	}
	return time.Now().In(tz)
}
