// Package completionlog holds the per-date record of completed habits, mood
// and reflection, keyed by UTC day.
package completionlog

import (
	"fmt"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

type Log struct {
	mu      sync.RWMutex
	entries map[string]models.DayEntry
	dirty   bool
}

// New returns a log seeded with a copy of entries.
func New(entries map[string]models.DayEntry) *Log {
	l := &Log{entries: make(map[string]models.DayEntry, len(entries))}
	for day, e := range entries {
		l.entries[day] = e.Clone()
	}
	return l
}

func checkDay(day string) error {
	if !utils.ValidateDay(day) {
		return fmt.Errorf("%w: invalid date key %q (expected YYYY-MM-DD)", apperrors.ErrValidation, day)
	}
	return nil
}

// Toggle flips the membership of habitID in day's completed set and
// reports whether the habit is now completed.
func (l *Log) Toggle(habitID, day string) (bool, error) {
	if err := checkDay(day); err != nil {
		return false, err
	}
	if habitID == "" {
		return false, fmt.Errorf("%w: habit id is required", apperrors.ErrValidation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[day]
	completed := make([]string, 0, len(entry.CompletedHabits)+1)
	found := false
	for _, id := range entry.CompletedHabits {
		if id == habitID {
			found = true
			continue
		}
		completed = append(completed, id)
	}
	if !found {
		completed = append(completed, habitID)
	}
	entry.CompletedHabits = completed
	l.entries[day] = entry
	l.dirty = true
	return !found, nil
}

// SetMood records a mood score for day. Scores outside the accepted range are rejected.
func (l *Log) SetMood(day string, score int) error {
	if err := checkDay(day); err != nil {
		return err
	}
	if score < constants.MoodMin || score > constants.MoodMax {
		return fmt.Errorf("%w: mood must be between %d and %d, got %d", apperrors.ErrValidation, constants.MoodMin, constants.MoodMax, score)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[day]
	if ok && entry.Mood != nil && *entry.Mood == score {
		return nil
	}
	if entry.CompletedHabits == nil {
		entry.CompletedHabits = []string{}
	}
	entry.Mood = &score
	l.entries[day] = entry
	l.dirty = true
	return nil
}

func (l *Log) ClearMood(day string) error {
	if err := checkDay(day); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[day]
	if !ok || entry.Mood == nil {
		return nil
	}
	entry.Mood = nil
	l.entries[day] = entry
	l.dirty = true
	return nil
}

// SetReflection stores text for day, truncated to the reflection limit,
// and returns the text actually stored.
func (l *Log) SetReflection(day, text string) (string, error) {
	if err := checkDay(day); err != nil {
		return "", err
	}
	stored := Truncate(text, constants.MaxReflectionRunes)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[day]
	if ok && entry.Reflection == stored {
		return stored, nil
	}
	if entry.CompletedHabits == nil {
		entry.CompletedHabits = []string{}
	}
	entry.Reflection = stored
	l.entries[day] = entry
	l.dirty = true
	return stored, nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// RemoveHabitEverywhere scrubs habitID from every completed set and returns
// the number of entries that changed.
func (l *Log) RemoveHabitEverywhere(habitID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	touched := 0
	for day, entry := range l.entries {
		if !entry.Has(habitID) {
			continue
		}
		kept := make([]string, 0, len(entry.CompletedHabits)-1)
		for _, id := range entry.CompletedHabits {
			if id != habitID {
				kept = append(kept, id)
			}
		}
		entry.CompletedHabits = kept
		l.entries[day] = entry
		touched++
	}
	if touched > 0 {
		l.dirty = true
	}
	return touched
}

// PruneOlderThan deletes every entry strictly before cutoff and returns the count removed.
func (l *Log) PruneOlderThan(cutoff string) (int, error) {
	if err := checkDay(cutoff); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for day := range l.entries {
		// YYYY-MM-DD keys order lexically
		if day < cutoff {
			delete(l.entries, day)
			removed++
		}
	}
	if removed > 0 {
		l.dirty = true
	}
	return removed, nil
}

// Days returns every date key in the log, most recent first.
func (l *Log) Days() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	days := make([]string, 0, len(l.entries))
	for day := range l.entries {
		days = append(days, day)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	return days
}

func (l *Log) Entry(day string) (models.DayEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[day]
	if !ok {
		return models.DayEntry{}, false
	}
	return e.Clone(), true
}

func (l *Log) IsCompleted(habitID, day string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries[day].Has(habitID)
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Dirty reports whether the log changed since the last MarkClean
func (l *Log) Dirty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dirty
}

func (l *Log) MarkClean() {
	l.mu.Lock()
	l.dirty = false
	l.mu.Unlock()
}

// Snapshot returns a deep copy of the entries suitable for persistence.
func (l *Log) Snapshot() map[string]models.DayEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]models.DayEntry, len(l.entries))
	for day, e := range l.entries {
		out[day] = e.Clone()
	}
	return out
}
