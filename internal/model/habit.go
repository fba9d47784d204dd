package model

import (
	"slices"
	"time"
)

// Habit is a tracked recurring habit. CompletedDates is the source of truth;
// Streak and BestStreak are caches the store recomputes after every mutation
// and must never drift from a fresh recomputation.
type Habit struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CompletedDates   []string  `json:"completed_dates"`
	Streak           int       `json:"streak"`
	BestStreak       int       `json:"best_streak"`
	CreatedAt        time.Time `json:"created_at"`
	NotificationTime string    `json:"notification_time,omitempty"`
}

// CompletedOn reports whether the habit has a completion on the given day-key.
func (h *Habit) CompletedOn(key string) bool {
	return slices.Contains(h.CompletedDates, key)
}

// Clone returns a deep copy so callers can hold habit values without aliasing
// the store's collection.
func (h *Habit) Clone() Habit {
	c := *h
	c.CompletedDates = slices.Clone(h.CompletedDates)
	return c
}
