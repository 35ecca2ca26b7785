package models

import (
	"encoding/json"
	"time"
)

// Snapshot is the document exchanged with the sync server:
// {habits, dailyData, currentStreak}.
type Snapshot struct {
	Habits        []Habit             `json:"habits"`
	DailyData     map[string]DayEntry `json:"dailyData"`
	CurrentStreak int                 `json:"currentStreak"`
}

// NewSnapshot returns an empty snapshot with initialized collections
func NewSnapshot() Snapshot {
	return Snapshot{Habits: []Habit{}, DailyData: map[string]DayEntry{}}
}

// Normalize replaces nil collections with empty ones so the wire shape never carries null
func (s *Snapshot) Normalize() {
	if s.Habits == nil {
		s.Habits = []Habit{}
	}
	if s.DailyData == nil {
		s.DailyData = map[string]DayEntry{}
	}
}

// IsEmpty reports whether the snapshot holds no habits and no daily data
func (s Snapshot) IsEmpty() bool {
	return len(s.Habits) == 0 && len(s.DailyData) == 0
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Habits:        append([]Habit{}, s.Habits...),
		DailyData:     make(map[string]DayEntry, len(s.DailyData)),
		CurrentStreak: s.CurrentStreak,
	}
	for day, entry := range s.DailyData {
		out.DailyData[day] = entry.Clone()
	}
	return out
}

// UnmarshalJSON decodes a snapshot without failing the whole document on a bad
// field: malformed habits or days are skipped, a malformed streak becomes 0 and
// missing collections default to empty.
func (s *Snapshot) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*s = NewSnapshot()

	if habitsRaw, ok := raw["habits"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(habitsRaw, &items); err == nil {
			for _, item := range items {
				var h Habit
				if err := json.Unmarshal(item, &h); err != nil || h.ID == "" {
					continue
				}
				s.Habits = append(s.Habits, h)
			}
		}
	}

	if dailyRaw, ok := raw["dailyData"]; ok {
		var days map[string]json.RawMessage
		if err := json.Unmarshal(dailyRaw, &days); err == nil {
			for day, entryRaw := range days {
				var entry DayEntry
				if err := json.Unmarshal(entryRaw, &entry); err != nil {
					continue
				}
				s.DailyData[day] = entry
			}
		}
	}

	if streakRaw, ok := raw["currentStreak"]; ok {
		var streak float64
		if err := json.Unmarshal(streakRaw, &streak); err == nil && streak > 0 {
			s.CurrentStreak = int(streak)
		}
	}

	return nil
}

// LocalMeta is the device-local bookkeeping stored next to a guest snapshot
type LocalMeta struct {
	GuestID    string     `json:"guestId"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastSyncAt *time.Time `json:"lastSyncAt,omitempty"`
	MigratedAt *time.Time `json:"migratedAt,omitempty"`
	BestStreak int        `json:"bestStreak"`
}

// LocalData is the guest-mode document: the snapshot plus local bookkeeping.
// Its JSON form is flat, the remote shape with the meta fields alongside.
type LocalData struct {
	Data Snapshot `json:"-"`
	LocalMeta
}

func (d LocalData) MarshalJSON() ([]byte, error) {
	data := d.Data
	data.Normalize()
	return json.Marshal(struct {
		Habits        []Habit             `json:"habits"`
		DailyData     map[string]DayEntry `json:"dailyData"`
		CurrentStreak int                 `json:"currentStreak"`
		LocalMeta
	}{data.Habits, data.DailyData, data.CurrentStreak, d.LocalMeta})
}

func (d *LocalData) UnmarshalJSON(b []byte) error {
	var data Snapshot
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	var meta LocalMeta
	if err := json.Unmarshal(b, &meta); err != nil {
		return err
	}
	d.Data = data
	d.LocalMeta = meta
	return nil
}

// Insights are the rollup statistics shown next to today's habits
type Insights struct {
	WeeklyAverage    float64 `json:"weekly_average"`
	CurrentStreak    int     `json:"current_streak"`
	BestStreak       int     `json:"best_streak"`
	TotalDaysTracked int     `json:"total_days_tracked"`
	CompletedToday   int     `json:"completed_today"`
	ActiveHabits     int     `json:"active_habits"`
}

// DayRate is one cell of the completion calendar
type DayRate struct {
	Day        string  `json:"day"`
	Completed  int     `json:"completed"`
	Applicable int     `json:"applicable"`
	Rate       float64 `json:"rate"`
}
