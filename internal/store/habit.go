package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/seanmcnab/habitd/internal/dates"
	"github.com/seanmcnab/habitd/internal/model"
	"github.com/seanmcnab/habitd/internal/streak"
)

// habitsSlot is the state slot holding the habit collection as a JSON array.
const habitsSlot = "habits"

var (
	ErrEmptyName   = errors.New("habit name is required")
	ErrInvalidTime = errors.New("notification time must be HH:MM")
)

// Stats are the aggregate numbers shown in the tracker's header.
type Stats struct {
	TotalHabits    int `json:"total_habits"`
	CompletedToday int `json:"completed_today"`
	BestStreak     int `json:"best_streak"`
}

// HabitStore owns the habit collection. The authoritative copy lives in
// memory in insertion order; every mutation recomputes the derived streak
// fields and writes the whole collection through the state slot before
// returning. Unknown habit ids are deliberately treated as no-ops rather than
// errors, since ids only ever come from a snapshot handed to the UI.
type HabitStore struct {
	mu     sync.Mutex
	state  *StateStore
	logger *slog.Logger
	habits []*model.Habit
	now    func() time.Time
}

func NewHabitStore(state *StateStore, logger *slog.Logger) *HabitStore {
	return &HabitStore{
		state:  state,
		logger: logger,
		now:    time.Now,
	}
}

// Create validates the name, allocates a fresh habit with zeroed derived
// fields, appends it, and persists.
func (s *HabitStore) Create(name, notificationTime string) (*model.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if notificationTime != "" {
		if _, err := dates.ParseClock(notificationTime); err != nil {
			return nil, ErrInvalidTime
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := &model.Habit{
		ID:               s.nextIDLocked(),
		Name:             name,
		CompletedDates:   []string{},
		CreatedAt:        s.now(),
		NotificationTime: notificationTime,
	}
	s.habits = append(s.habits, h)

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	c := h.Clone()
	return &c, nil
}

// Update renames a habit and/or changes its reminder time. Returns nil for an
// unknown id.
func (s *HabitStore) Update(id, name, notificationTime string) (*model.Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if notificationTime != "" {
		if _, err := dates.ParseClock(notificationTime); err != nil {
			return nil, ErrInvalidTime
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.findLocked(id)
	if h == nil {
		return nil, nil
	}
	h.Name = name
	h.NotificationTime = notificationTime

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	c := h.Clone()
	return &c, nil
}

// ToggleCompletion flips membership of today's day-key in the habit's
// completion set, refreshes the derived streaks, and persists. Returns nil
// for an unknown id.
func (s *HabitStore) ToggleCompletion(id string, today time.Time) (*model.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.findLocked(id)
	if h == nil {
		return nil, nil
	}

	key := dates.DayKey(today)
	removed := false
	for i, d := range h.CompletedDates {
		if d == key {
			h.CompletedDates = append(h.CompletedDates[:i], h.CompletedDates[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		h.CompletedDates = append(h.CompletedDates, key)
	}

	res := streak.Recompute(h.CompletedDates, today, h.BestStreak)
	h.Streak = res.Current
	h.BestStreak = res.Best

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	c := h.Clone()
	return &c, nil
}

// Delete removes a habit and persists. Removing an unknown id is a no-op.
func (s *HabitStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, h := range s.habits {
		if h.ID == id {
			s.habits = append(s.habits[:i], s.habits[i+1:]...)
			return s.persistLocked()
		}
	}
	return nil
}

// Snapshot returns a copy of the collection in creation order.
func (s *HabitStore) Snapshot() []model.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Habit, 0, len(s.habits))
	for _, h := range s.habits {
		out = append(out, h.Clone())
	}
	return out
}

// Stats computes the aggregate header numbers for the given day.
func (s *HabitStore) Stats(today time.Time) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dates.DayKey(today)
	st := Stats{TotalHabits: len(s.habits)}
	for _, h := range s.habits {
		if h.CompletedOn(key) {
			st.CompletedToday++
		}
		if h.BestStreak > st.BestStreak {
			st.BestStreak = h.BestStreak
		}
	}
	return st
}

// Restore loads the collection from the state slot. A missing or corrupt slot
// yields an empty collection rather than an error; only a storage failure is
// reported.
func (s *HabitStore) Restore() error {
	value, ok, err := s.state.Get(habitsSlot)
	if err != nil {
		return fmt.Errorf("restore habits: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok {
		s.habits = nil
		return nil
	}

	var habits []*model.Habit
	if err := json.Unmarshal([]byte(value), &habits); err != nil {
		s.logger.Warn("habit state corrupt, starting empty", "error", err)
		s.habits = nil
		return nil
	}
	for _, h := range habits {
		if h == nil {
			// A null entry is valid JSON but not a habit; the slot is corrupt.
			s.logger.Warn("habit state corrupt, starting empty", "reason", "null entry")
			s.habits = nil
			return nil
		}
		h.CompletedDates = dedupeDays(h.CompletedDates)
	}
	s.habits = habits
	return nil
}

// dedupeDays drops repeated day-keys, keeping first occurrence order.
func dedupeDays(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Persist writes the current collection to the state slot.
func (s *HabitStore) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *HabitStore) persistLocked() error {
	habits := s.habits
	if habits == nil {
		habits = []*model.Habit{}
	}
	data, err := json.Marshal(habits)
	if err != nil {
		return fmt.Errorf("marshal habits: %w", err)
	}
	if err := s.state.Set(habitsSlot, string(data)); err != nil {
		return fmt.Errorf("persist habits: %w", err)
	}
	return nil
}

func (s *HabitStore) findLocked(id string) *model.Habit {
	for _, h := range s.habits {
		if h.ID == id {
			return h
		}
	}
	return nil
}

// nextIDLocked mints an opaque id from the creation timestamp, suffixed when
// two habits are created within the same millisecond.
func (s *HabitStore) nextIDLocked() string {
	base := strconv.FormatInt(s.now().UnixMilli(), 10)
	id := base
	for n := 1; s.findLocked(id) != nil; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}
