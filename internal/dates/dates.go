// Package dates provides calendar-day and clock-time helpers. Completion
// tracking works in units of local calendar days, identified by day-keys in
// YYYY-MM-DD form.
package dates

import (
	"fmt"
	"math"
	"time"
)

const keyLayout = "2006-01-02"

// DayKey returns the day-key for t's local calendar date. Two instants map to
// the same key iff they fall on the same local calendar day.
func DayKey(t time.Time) string {
	return t.Format(keyLayout)
}

// ParseDayKey parses a day-key into midnight local time.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(keyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the signed number of calendar days from keyB to keyA.
// Both keys are normalized to midnight, so time of day never matters; the
// difference is rounded to the nearest whole day to absorb DST transitions.
func DaysBetween(keyA, keyB string) (int, error) {
	a, err := ParseDayKey(keyA)
	if err != nil {
		return 0, err
	}
	b, err := ParseDayKey(keyB)
	if err != nil {
		return 0, err
	}
	return DaysApart(a, b), nil
}

// DaysApart is DaysBetween over already-parsed instants. Both are normalized
// to midnight before differencing.
func DaysApart(a, b time.Time) int {
	diff := StartOfDay(a).Sub(StartOfDay(b))
	return int(math.Round(diff.Hours() / 24))
}

// MinuteOfDay returns minutes elapsed since local midnight for t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock parses an HH:MM reminder time into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
