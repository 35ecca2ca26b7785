package constants

const (
	// Mood scores are integers in [MoodMin, MoodMax]
	MoodMin = 1
	MoodMax = 5

	// MaxReflectionRunes bounds a day's reflection text
	MaxReflectionRunes = 280

	// MaxHabitNameRunes bounds a habit's display name
	MaxHabitNameRunes = 100

	// RetentionYears is the horizon after which completion log entries are pruned
	RetentionYears = 2

	// PruneAttempts bounds how often retention retries a key that changed under it
	PruneAttempts = 5

	// OverallStreakRatio is the share of applicable habits a day needs to count
	// toward the overall streak. The absolute bar never drops below one habit.
	OverallStreakRatio = 0.7

	// WeeklyWindowDays is the window of the weekly average (today and 6 prior days)
	WeeklyWindowDays = 7
)

func init() {
	if OverallStreakRatio <= 0 || OverallStreakRatio > 1 {
		panic("OverallStreakRatio must be in (0, 1]")
	}
	if MoodMin >= MoodMax {
		panic("MoodMin must be lower than MoodMax")
	}
}
