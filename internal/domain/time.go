package domain

import (
	"math"
	"strings"
	"time"
)

const eventTimeLayout = "2006-01-02T15:04:05"

// ParseEventTime parses an upstream event time string into a UTC time.
// Accepts ISO-8601 with an optional trailing "Z" and optional fractional
// seconds truncated to at most six digits. Returns a zero time and false
// when the string is empty or unparsable.
func ParseEventTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, "Z")

	if parts := strings.Split(s, "."); len(parts) == 2 {
		frac := parts[1]
		if len(frac) > 6 {
			frac = frac[:6]
		}
		s = parts[0]
		if frac != "" {
			s = s + "." + frac
		}
	} else if len(parts) > 2 {
		// Oddball format; keep the seconds and drop the rest.
		s = parts[0]
	}

	t, err := time.Parse(eventTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FormatLocalTime renders an event time in the target timezone. A nil
// location renders UTC with its numeric offset, by design, never an error.
// A zero time renders an explicit unavailable label.
func FormatLocalTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "time unavailable"
	}
	if loc == nil {
		return t.UTC().Format("2006-01-02 15:04:05 UTC-0700")
	}
	return t.In(loc).Format("2006-01-02 15:04:05 MST-0700")
}

// DelayMinutes computes the ingestion delay between an event time and the
// moment of observation, in minutes rounded to one decimal. Negative
// deltas from clock skew or stale feed data are clamped to zero. Returns
// nil when the event time is unknown.
func DelayMinutes(eventTime, now time.Time) *float64 {
	if eventTime.IsZero() {
		return nil
	}
	minutes := now.Sub(eventTime).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	minutes = math.Round(minutes*10) / 10
	return &minutes
}
