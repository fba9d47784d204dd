package dates

import (
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	instant := time.Date(2024, 1, 3, 23, 45, 12, 0, time.Local)
	if got := DayKey(instant); got != "2024-01-03" {
		t.Errorf("DayKey = %q, want %q", got, "2024-01-03")
	}

	// Two instants on the same local day share a key
	morning := time.Date(2024, 1, 3, 0, 0, 1, 0, time.Local)
	if DayKey(instant) != DayKey(morning) {
		t.Error("expected same key for instants on the same day")
	}
}

func TestParseDayKeyRoundTrip(t *testing.T) {
	parsed, err := ParseDayKey("2024-06-15")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Hour() != 0 || parsed.Minute() != 0 {
		t.Errorf("expected midnight, got %v", parsed)
	}
	if got := DayKey(parsed); got != "2024-06-15" {
		t.Errorf("round trip = %q, want %q", got, "2024-06-15")
	}
}

func TestParseDayKeyInvalid(t *testing.T) {
	if _, err := ParseDayKey("not-a-date"); err == nil {
		t.Fatal("expected error for malformed key")
	}
}

func TestDaysBetween(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2024-01-03", "2024-01-01", 2},
		{"2024-01-01", "2024-01-03", -2},
		{"2024-01-01", "2024-01-01", 0},
		{"2024-03-01", "2024-02-28", 2}, // leap year
		{"2023-03-01", "2023-02-28", 1},
	}
	for _, c := range cases {
		got, err := DaysBetween(c.a, c.b)
		if err != nil {
			t.Fatalf("DaysBetween(%q, %q): %v", c.a, c.b, err)
		}
		if got != c.want {
			t.Errorf("DaysBetween(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestDaysApartIgnoresTimeOfDay(t *testing.T) {
	a := time.Date(2024, 1, 2, 23, 59, 0, 0, time.Local)
	b := time.Date(2024, 1, 1, 0, 1, 0, 0, time.Local)
	if got := DaysApart(a, b); got != 1 {
		t.Errorf("DaysApart = %d, want 1", got)
	}
}

func TestMinuteOfDay(t *testing.T) {
	instant := time.Date(2024, 1, 3, 9, 1, 30, 0, time.Local)
	if got := MinuteOfDay(instant); got != 541 {
		t.Errorf("MinuteOfDay = %d, want 541", got)
	}
	midnight := time.Date(2024, 1, 3, 0, 0, 59, 0, time.Local)
	if got := MinuteOfDay(midnight); got != 0 {
		t.Errorf("MinuteOfDay at midnight = %d, want 0", got)
	}
}

func TestParseClock(t *testing.T) {
	got, err := ParseClock("09:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != 540 {
		t.Errorf("ParseClock(09:00) = %d, want 540", got)
	}

	got, err = ParseClock("23:59")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != 1439 {
		t.Errorf("ParseClock(23:59) = %d, want 1439", got)
	}

	for _, bad := range []string{"", "9am", "25:00", "09:65"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
