package models

import (
	"encoding/json"
	"math"
)

// DayEntry is one date's record in the completion log
type DayEntry struct {
	CompletedHabits []string `json:"completed_habits"`
	Mood            *int     `json:"mood"`
	Reflection      string   `json:"reflection"`
}

// IsEmpty reports whether the entry carries no completions, mood or reflection
func (e DayEntry) IsEmpty() bool {
	return len(e.CompletedHabits) == 0 && e.Mood == nil && e.Reflection == ""
}

// Has reports whether habitID is in the entry's completed set
func (e DayEntry) Has(habitID string) bool {
	for _, id := range e.CompletedHabits {
		if id == habitID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry
func (e DayEntry) Clone() DayEntry {
	out := DayEntry{Reflection: e.Reflection}
	out.CompletedHabits = append([]string{}, e.CompletedHabits...)
	if e.Mood != nil {
		m := *e.Mood
		out.Mood = &m
	}
	return out
}

func (e DayEntry) MarshalJSON() ([]byte, error) {
	completed := e.CompletedHabits
	if completed == nil {
		completed = []string{}
	}
	return json.Marshal(struct {
		CompletedHabits []string `json:"completed_habits"`
		Mood            *int     `json:"mood"`
		Reflection      string   `json:"reflection"`
	}{completed, e.Mood, e.Reflection})
}

// UnmarshalJSON decodes a day entry leniently. Both the snake_case and the
// camelCase completed-set key are accepted, duplicate or non-string ids are
// dropped, and a mood that is not an integer is treated as absent.
func (e *DayEntry) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = DayEntry{CompletedHabits: []string{}}

	completedRaw, ok := raw["completed_habits"]
	if !ok {
		completedRaw = raw["completedHabits"]
	}
	if len(completedRaw) > 0 {
		var items []json.RawMessage
		if err := json.Unmarshal(completedRaw, &items); err == nil {
			seen := make(map[string]bool, len(items))
			for _, item := range items {
				var id string
				if err := json.Unmarshal(item, &id); err != nil || id == "" || seen[id] {
					continue
				}
				seen[id] = true
				e.CompletedHabits = append(e.CompletedHabits, id)
			}
		}
	}

	if moodRaw, ok := raw["mood"]; ok {
		var f float64
		if err := json.Unmarshal(moodRaw, &f); err == nil && f == math.Trunc(f) {
			m := int(f)
			e.Mood = &m
		}
	}

	if reflRaw, ok := raw["reflection"]; ok {
		var s string
		if err := json.Unmarshal(reflRaw, &s); err == nil {
			e.Reflection = s
		}
	}

	return nil
}
