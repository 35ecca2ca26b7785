// Package reconcile merges a guest snapshot into an account snapshot.
package reconcile

import (
	"sort"

	"github.com/julianstephens/daystreak/internal/completionlog"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/streak"
	"github.com/julianstephens/daystreak/internal/validation"
)

// ShouldMigrate reports whether local carries anything worth merging. An
// empty local snapshot must never be written over the remote one.
func ShouldMigrate(local models.Snapshot) bool {
	if len(local.Habits) > 0 {
		return true
	}
	for _, e := range local.DailyData {
		if !e.IsEmpty() {
			return true
		}
	}
	return false
}

// Merge combines local into remote:
//   - habits are unioned by id, remote wins on a clash
//   - completed sets are unioned per day
//   - remote mood wins when set, remote reflection wins when non-empty
//   - ids not present in the merged registry are scrubbed
//
// The current streak is recomputed as of today.
func Merge(local, remote models.Snapshot, today string) models.Snapshot {
	out := remote.Clone()
	out.Normalize()

	known := make(map[string]bool, len(out.Habits))
	for _, h := range out.Habits {
		known[h.ID] = true
	}
	for _, h := range local.Habits {
		if known[h.ID] {
			continue
		}
		known[h.ID] = true
		out.Habits = append(out.Habits, h)
	}

	for day, le := range local.DailyData {
		re, ok := out.DailyData[day]
		if !ok {
			out.DailyData[day] = le.Clone()
			continue
		}
		re.CompletedHabits = union(re.CompletedHabits, le.CompletedHabits)
		if re.Mood == nil && le.Mood != nil {
			m := *le.Mood
			re.Mood = &m
		}
		if re.Reflection == "" {
			re.Reflection = le.Reflection
		}
		out.DailyData[day] = re
	}

	validation.ScrubDangling(&out)
	out.CurrentStreak = streak.OverallStreak(out.Habits, completionlog.New(out.DailyData), today)
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, ids := range [][]string{a, b} {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
