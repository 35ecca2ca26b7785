package models

import "time"

type Category string

const (
	CategoryHealth    Category = "Health"
	CategoryStudy     Category = "Study"
	CategoryMental    Category = "Mental"
	CategoryLifestyle Category = "Lifestyle"
)

// Categories lists every accepted category in display order
var Categories = []Category{CategoryHealth, CategoryStudy, CategoryMental, CategoryLifestyle}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Priority int

const (
	PriorityNormal        Priority = 0
	PriorityImportant     Priority = 1
	PriorityVeryImportant Priority = 2
)

func (p Priority) IsValid() bool {
	return p >= PriorityNormal && p <= PriorityVeryImportant
}

func (p Priority) String() string {
	switch p {
	case PriorityNormal:
		return "normal"
	case PriorityImportant:
		return "important"
	case PriorityVeryImportant:
		return "very important"
	default:
		return "unknown"
	}
}

// Habit represents a recurring practice to track
type Habit struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Category    Category  `json:"category"`
	TimeHint    string    `json:"time_hint,omitempty"`
	Priority    Priority  `json:"priority"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"` // set once, never updated
}

// HabitStatus is a habit together with the statistics derived from the completion log.
// It is recomputed on every read and never persisted.
type HabitStatus struct {
	Habit
	CompletedToday   bool     `json:"completed_today"`
	CurrentStreak    int      `json:"current_streak"`
	LongestStreak    int      `json:"longest_streak"`
	TotalCompletions int      `json:"total_completions"`
	CompletedDates   []string `json:"completed_dates"`
}
