// Package streak derives streak statistics from a habit's completion history.
// The functions here are pure: the same history and "today" always produce the
// same numbers, which is what lets the store treat the cached values on a
// habit as disposable.
package streak

import (
	"math"
	"sort"
	"time"

	"github.com/seanmcnab/habitd/internal/dates"
)

// Result holds the derived streak numbers for one habit.
type Result struct {
	Current int
	Best    int
}

// Recompute derives the current and best streak from a set of completion
// day-keys. The current streak is the consecutive run ending at today or
// yesterday; anything older is a broken streak. The best streak is the
// longest consecutive run anywhere in history, floored by priorBest so that
// removing completions never erases a past achievement.
func Recompute(completedDates []string, today time.Time, priorBest int) Result {
	days := make([]time.Time, 0, len(completedDates))
	for _, key := range completedDates {
		d, err := dates.ParseDayKey(key)
		if err != nil {
			// Malformed keys contribute nothing
			continue
		}
		days = append(days, d)
	}
	if len(days) == 0 {
		return Result{Current: 0, Best: priorBest}
	}

	// Most recent first
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	current := 0
	if dates.DaysApart(today, days[0]) <= 1 {
		current = 1
		for i := 1; i < len(days); i++ {
			if dates.DaysApart(days[i-1], days[i]) != 1 {
				break
			}
			current++
		}
	}

	best := 1
	run := 1
	for i := 1; i < len(days); i++ {
		if dates.DaysApart(days[i-1], days[i]) == 1 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
		}
	}
	if priorBest > best {
		best = priorBest
	}

	return Result{Current: current, Best: best}
}

// CompletionRate returns the percentage of days completed since the habit was
// created, counting the creation day itself. Returns 0 when the habit has no
// completions or the day count is not positive.
func CompletionRate(completedCount int, createdAt, today time.Time) int {
	daysSinceCreation := dates.DaysApart(today, createdAt) + 1
	if daysSinceCreation <= 0 || completedCount <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completedCount) / float64(daysSinceCreation)))
}
