package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"
)

// recordingSurface captures notification requests; failKeys simulates
// per-habit delivery failures.
type recordingSurface struct {
	mu       sync.Mutex
	requests []request
	failKeys map[string]bool
}

type request struct {
	title, body, dedupeKey string
	meta                   map[string]string
}

func (r *recordingSurface) Notify(title, body, dedupeKey string, meta map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failKeys[dedupeKey] {
		return errors.New("permission revoked")
	}
	r.requests = append(r.requests, request{title, body, dedupeKey, meta})
	return nil
}

func (r *recordingSurface) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.requests))
	for i, req := range r.requests {
		out[i] = req.dedupeKey
	}
	return out
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 1, 3, hour, minute, 30, 0, time.Local)
}

func newTestScheduler(surface Surface) *Scheduler {
	return NewScheduler(surface, slog.Default())
}

func TestTickDueWithinOneMinute(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{{ID: "h1", Name: "Meditate", Time: "09:00"}}

	s.Tick(at(9, 1))

	keys := surface.keys()
	if len(keys) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(keys))
	}
	if keys[0] != "habit-h1-2024-01-03" {
		t.Errorf("dedupe key = %q, want habit-h1-2024-01-03", keys[0])
	}
}

func TestTickNotDueOutsideWindow(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{{ID: "h1", Name: "Meditate", Time: "09:00"}}

	s.Tick(at(9, 2))
	s.Tick(at(8, 58))

	if got := len(surface.keys()); got != 0 {
		t.Errorf("expected no notifications, got %d", got)
	}
}

func TestTickWindowBothSides(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{{ID: "h1", Name: "Meditate", Time: "09:00"}}

	for _, now := range []time.Time{at(8, 59), at(9, 0), at(9, 1)} {
		s.Tick(now)
	}

	// Every tick inside the window asks again; dedup is the surface's job,
	// and this surface records every request.
	if got := len(surface.keys()); got != 3 {
		t.Errorf("expected 3 requests (one per in-window tick), got %d", got)
	}
	for _, k := range surface.keys() {
		if k != "habit-h1-2024-01-03" {
			t.Errorf("all requests must share the day's dedupe key, got %q", k)
		}
	}
}

func TestTickSkipsHabitsWithoutReminder(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{
		{ID: "h1", Name: "No reminder"},
		{ID: "h2", Name: "Meditate", Time: "09:00"},
	}

	s.Tick(at(9, 0))

	keys := surface.keys()
	if len(keys) != 1 || keys[0] != "habit-h2-2024-01-03" {
		t.Errorf("expected only h2 to fire, got %v", keys)
	}
}

func TestTickBadTimeDoesNotAbortPass(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{
		{ID: "h1", Name: "Broken", Time: "9am"},
		{ID: "h2", Name: "Meditate", Time: "09:00"},
	}

	s.Tick(at(9, 0))

	keys := surface.keys()
	if len(keys) != 1 || keys[0] != "habit-h2-2024-01-03" {
		t.Errorf("expected h2 to fire despite h1's bad time, got %v", keys)
	}
}

func TestTickFailureDoesNotAbortPass(t *testing.T) {
	surface := &recordingSurface{
		failKeys: map[string]bool{"habit-h1-2024-01-03": true},
	}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{
		{ID: "h1", Name: "Fails", Time: "09:00"},
		{ID: "h2", Name: "Meditate", Time: "09:00"},
	}

	s.Tick(at(9, 0))

	keys := surface.keys()
	if len(keys) != 1 || keys[0] != "habit-h2-2024-01-03" {
		t.Errorf("expected h2 to fire despite h1 failing, got %v", keys)
	}
}

func TestUpdateScheduleRunsImmediateCheck(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.now = func() time.Time { return at(7, 30) }
	s.interval = time.Hour // keep the ticker out of the test

	s.UpdateSchedule([]ScheduledHabit{{ID: "h1", Name: "Journal", Time: "07:30"}})
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for len(surface.keys()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for immediate check")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	if keys := surface.keys(); keys[0] != "habit-h1-2024-01-03" {
		t.Errorf("dedupe key = %q", keys[0])
	}
}

func TestUpdateScheduleReplacesWholesale(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.now = func() time.Time { return at(12, 0) } // nothing due
	s.interval = time.Hour

	s.UpdateSchedule([]ScheduledHabit{{ID: "old", Name: "Old", Time: "09:00"}})
	s.UpdateSchedule([]ScheduledHabit{{ID: "new", Name: "New", Time: "12:00"}})
	defer s.Stop()

	s.mu.Lock()
	habits := append([]ScheduledHabit(nil), s.habits...)
	s.mu.Unlock()

	if len(habits) != 1 || habits[0].ID != "new" {
		t.Errorf("schedule = %v, want only the new habit", habits)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestScheduler(&recordingSurface{})
	s.now = func() time.Time { return at(3, 0) }
	s.interval = time.Hour

	s.UpdateSchedule(nil)
	s.Stop()
	s.Stop() // no timer left; must not hang or panic
}

func TestConcurrentUpdateScheduleLeavesNoRunners(t *testing.T) {
	s := newTestScheduler(&recordingSurface{})
	s.now = func() time.Time { return at(3, 0) } // nothing due
	s.interval = time.Hour

	before := runtime.NumGoroutine()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.UpdateSchedule(nil)
		}()
	}
	wg.Wait()
	s.Stop()

	// Every replaced runner must have exited; only the baseline remains.
	deadline := time.After(2 * time.Second)
	for runtime.NumGoroutine() > before {
		select {
		case <-deadline:
			t.Fatalf("%d goroutines after Stop, started with %d", runtime.NumGoroutine(), before)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestDedupeKeyEmbedsDay(t *testing.T) {
	surface := &recordingSurface{}
	s := newTestScheduler(surface)
	s.habits = []ScheduledHabit{{ID: "h1", Name: "Meditate", Time: "09:00"}}

	s.Tick(time.Date(2024, 1, 3, 9, 0, 0, 0, time.Local))
	s.Tick(time.Date(2024, 1, 4, 9, 0, 0, 0, time.Local))

	keys := surface.keys()
	want := []string{"habit-h1-2024-01-03", "habit-h1-2024-01-04"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}
