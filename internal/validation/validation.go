package validation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateHabitID  ConflictType = "duplicate_habit_id"
	ConflictEmptyHabitName    ConflictType = "empty_habit_name"
	ConflictInvalidCategory   ConflictType = "invalid_category"
	ConflictInvalidPriority   ConflictType = "invalid_priority"
	ConflictInvalidDateKey    ConflictType = "invalid_date_key"
	ConflictDanglingHabitID   ConflictType = "dangling_habit_id"
	ConflictMoodOutOfRange    ConflictType = "mood_out_of_range"
	ConflictReflectionTooLong ConflictType = "reflection_too_long"
)

// Conflict represents an inconsistency detected in a snapshot
type Conflict struct {
	Type        ConflictType
	Description string
	Date        string   // YYYY-MM-DD format (if applicable)
	HabitIDs    []string // IDs of habits involved (for auto-fixing)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string
	SourceConflict Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// ValidateHabitName trims name and checks it is non-empty and within the length limit.
func ValidateHabitName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: habit name cannot be empty", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(trimmed) > constants.MaxHabitNameRunes {
		return "", fmt.Errorf("%w: habit name exceeds %d characters", apperrors.ErrValidation, constants.MaxHabitNameRunes)
	}
	return trimmed, nil
}

func ValidateCategory(c models.Category) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: invalid category %q (expected one of %v)", apperrors.ErrValidation, c, models.Categories)
	}
	return nil
}

func ValidatePriority(p models.Priority) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: invalid priority %d (expected 0, 1 or 2)", apperrors.ErrValidation, p)
	}
	return nil
}

// ValidateHabit checks every user-editable field of h.
func ValidateHabit(h models.Habit) error {
	if _, err := ValidateHabitName(h.Name); err != nil {
		return err
	}
	if err := ValidateCategory(h.Category); err != nil {
		return err
	}
	return ValidatePriority(h.Priority)
}

func ValidateMood(score int) error {
	if score < constants.MoodMin || score > constants.MoodMax {
		return fmt.Errorf("%w: mood must be between %d and %d, got %d", apperrors.ErrValidation, constants.MoodMin, constants.MoodMax, score)
	}
	return nil
}

// ValidateSnapshot reports every inconsistency in s without modifying it.
func ValidateSnapshot(s models.Snapshot) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	known := make(map[string]bool, len(s.Habits))
	seen := make(map[string]int, len(s.Habits))
	for _, h := range s.Habits {
		seen[h.ID]++
		known[h.ID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if seen[id] > 1 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDuplicateHabitID,
				Description: fmt.Sprintf("Habit id %s appears %d times", id, seen[id]),
				HabitIDs:    []string{id},
			})
		}
	}

	for _, h := range s.Habits {
		if strings.TrimSpace(h.Name) == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictEmptyHabitName,
				Description: fmt.Sprintf("Habit %s has an empty name", h.ID),
				HabitIDs:    []string{h.ID},
			})
		}
		if !h.Category.IsValid() {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidCategory,
				Description: fmt.Sprintf("Habit \"%s\" has invalid category %q", h.Name, h.Category),
				HabitIDs:    []string{h.ID},
			})
		}
		if !h.Priority.IsValid() {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidPriority,
				Description: fmt.Sprintf("Habit \"%s\" has invalid priority %d", h.Name, h.Priority),
				HabitIDs:    []string{h.ID},
			})
		}
	}

	days := make([]string, 0, len(s.DailyData))
	for day := range s.DailyData {
		days = append(days, day)
	}
	sort.Strings(days)

	for _, day := range days {
		entry := s.DailyData[day]
		if !utils.ValidateDay(day) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidDateKey,
				Description: fmt.Sprintf("Invalid date key %q", day),
				Date:        day,
			})
			continue
		}

		var dangling []string
		for _, id := range entry.CompletedHabits {
			if !known[id] {
				dangling = append(dangling, id)
			}
		}
		if len(dangling) > 0 {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictDanglingHabitID,
				Description: fmt.Sprintf("%s references unknown habit(s) %v", day, dangling),
				Date:        day,
				HabitIDs:    dangling,
			})
		}

		if entry.Mood != nil && ValidateMood(*entry.Mood) != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictMoodOutOfRange,
				Description: fmt.Sprintf("%s has mood %d outside %d-%d", day, *entry.Mood, constants.MoodMin, constants.MoodMax),
				Date:        day,
			})
		}

		if utf8.RuneCountInString(entry.Reflection) > constants.MaxReflectionRunes {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictReflectionTooLong,
				Description: fmt.Sprintf("%s reflection exceeds %d characters", day, constants.MaxReflectionRunes),
				Date:        day,
			})
		}
	}

	return result
}

// FixSnapshot repairs the conflicts reported by ValidateSnapshot and returns
// the repaired copy with the actions taken. Duplicate habits keep their first
// occurrence, unnamed habits are dropped, invalid categories and priorities are
// reset, bad date keys removed, dangling ids scrubbed, bad moods cleared and
// long reflections truncated.
func FixSnapshot(s models.Snapshot) (models.Snapshot, []FixAction) {
	result := ValidateSnapshot(s)
	out := s.Clone()
	out.Normalize()
	if !result.HasConflicts() {
		return out, nil
	}

	var actions []FixAction
	for _, c := range result.Conflicts {
		switch c.Type {
		case ConflictDuplicateHabitID:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Kept first habit with id %s, dropped duplicates", c.HabitIDs[0]), SourceConflict: c})
		case ConflictEmptyHabitName:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Removed unnamed habit %s", c.HabitIDs[0]), SourceConflict: c})
		case ConflictInvalidCategory:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Reset category of habit %s to %s", c.HabitIDs[0], models.CategoryLifestyle), SourceConflict: c})
		case ConflictInvalidPriority:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Reset priority of habit %s to normal", c.HabitIDs[0]), SourceConflict: c})
		case ConflictInvalidDateKey:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Removed entry with invalid date key %q", c.Date), SourceConflict: c})
		case ConflictDanglingHabitID:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Removed unknown habit id(s) %v from %s", c.HabitIDs, c.Date), SourceConflict: c})
		case ConflictMoodOutOfRange:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Cleared out-of-range mood on %s", c.Date), SourceConflict: c})
		case ConflictReflectionTooLong:
			actions = append(actions, FixAction{Action: fmt.Sprintf("Truncated reflection on %s", c.Date), SourceConflict: c})
		}
	}

	seen := make(map[string]bool, len(out.Habits))
	habits := make([]models.Habit, 0, len(out.Habits))
	for _, h := range out.Habits {
		if seen[h.ID] || strings.TrimSpace(h.Name) == "" {
			continue
		}
		seen[h.ID] = true
		if !h.Category.IsValid() {
			h.Category = models.CategoryLifestyle
		}
		if !h.Priority.IsValid() {
			h.Priority = models.PriorityNormal
		}
		habits = append(habits, h)
	}
	out.Habits = habits

	for day, entry := range out.DailyData {
		if !utils.ValidateDay(day) {
			delete(out.DailyData, day)
			continue
		}
		kept := make([]string, 0, len(entry.CompletedHabits))
		for _, id := range entry.CompletedHabits {
			if seen[id] {
				kept = append(kept, id)
			}
		}
		entry.CompletedHabits = kept
		if entry.Mood != nil && ValidateMood(*entry.Mood) != nil {
			entry.Mood = nil
		}
		if utf8.RuneCountInString(entry.Reflection) > constants.MaxReflectionRunes {
			entry.Reflection = string([]rune(entry.Reflection)[:constants.MaxReflectionRunes])
		}
		out.DailyData[day] = entry
	}

	return out, actions
}

// ScrubDangling removes completion ids that name no habit in s.
func ScrubDangling(s *models.Snapshot) int {
	known := make(map[string]bool, len(s.Habits))
	for _, h := range s.Habits {
		known[h.ID] = true
	}
	removed := 0
	for day, entry := range s.DailyData {
		kept := make([]string, 0, len(entry.CompletedHabits))
		for _, id := range entry.CompletedHabits {
			if known[id] {
				kept = append(kept, id)
				continue
			}
			removed++
		}
		entry.CompletedHabits = kept
		s.DailyData[day] = entry
	}
	return removed
}
