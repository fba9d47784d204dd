package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seanmcnab/habitd/internal/dates"
)

// ScheduledHabit is the value snapshot of one habit's reminder settings. The
// scheduler never sees live habit state; the UI layer pushes a fresh list
// whenever anything changes.
type ScheduledHabit struct {
	ID   string
	Name string
	Time string // "HH:MM" local; empty disables the reminder
}

// Scheduler matches wall-clock time against per-habit reminder times on a
// fixed cadence. A habit is due when its reminder time is within one minute
// of now; the window tolerates ticker jitter, and the surface's dedupe key
// keeps the habit from firing twice in one day.
type Scheduler struct {
	mu       sync.Mutex
	surface  Surface
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	habits   []ScheduledHabit
	cancel   context.CancelFunc
	done     chan struct{}

	// restartMu serializes cancel-wait-install across UpdateSchedule and
	// Stop; without it two concurrent replacements can both cancel the old
	// runner and orphan one of the two they spawn.
	restartMu sync.Mutex
}

func NewScheduler(surface Surface, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		surface:  surface,
		logger:   logger,
		interval: 60 * time.Second,
		now:      time.Now,
	}
}

// UpdateSchedule replaces the scheduled habit list wholesale, restarts the
// periodic timer, and performs one immediate check. An in-flight tick is
// allowed to finish before the old timer is cleared.
func (s *Scheduler) UpdateSchedule(habits []ScheduledHabit) {
	s.mu.Lock()
	s.habits = append([]ScheduledHabit(nil), habits...)
	s.mu.Unlock()

	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	ctx, cancelNew := context.WithCancel(context.Background())
	doneNew := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancelNew
	s.done = doneNew
	s.mu.Unlock()

	go s.run(ctx, doneNew)
}

// Stop cancels the periodic timer and waits for any in-flight tick.
func (s *Scheduler) Stop() {
	s.restartMu.Lock()
	defer s.restartMu.Unlock()

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.Tick(s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.now())
		}
	}
}

// Tick runs one due-now pass against the given instant. A failure to notify
// one habit is logged and never aborts the rest of the pass.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	habits := append([]ScheduledHabit(nil), s.habits...)
	s.mu.Unlock()

	minute := dates.MinuteOfDay(now)
	today := dates.DayKey(now)

	for _, h := range habits {
		if h.Time == "" {
			continue
		}
		target, err := dates.ParseClock(h.Time)
		if err != nil {
			s.logger.Warn("invalid reminder time", "habit_id", h.ID, "time", h.Time)
			continue
		}

		diff := minute - target
		if diff < 0 {
			diff = -diff
		}
		if diff > 1 {
			continue
		}

		key := fmt.Sprintf("habit-%s-%s", h.ID, today)
		title := fmt.Sprintf("Time for: %s", h.Name)
		body := fmt.Sprintf("Don't forget to complete your habit: %s", h.Name)
		meta := map[string]string{"habit_id": h.ID, "url": "/"}

		if err := s.surface.Notify(title, body, key, meta); err != nil {
			s.logger.Error("request notification", "habit_id", h.ID, "error", err)
		}
	}
}
