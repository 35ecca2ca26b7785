// Package streak derives per-habit and overall statistics from the habit
// registry and a read-only view of the completion log. Every function is pure:
// the current day is always passed in.
package streak

import (
	"fmt"
	"math"
	"sort"

	"github.com/julianstephens/daystreak/internal/constants"
	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
	"github.com/julianstephens/daystreak/internal/utils"
)

// LogView is the read side of the completion log.
type LogView interface {
	// Days returns every date key present in the log
	Days() []string
	Entry(day string) (models.DayEntry, bool)
	IsCompleted(habitID, day string) bool
}

// walk counts consecutive qualifying days ending at today (or yesterday while
// today has no entry yet). Once today has any entry it is treated as decided:
// logging a mood or another habit ends the streak of a habit not yet done
// today, in exchange for streaks that never count an unfinished day.
func walk(view LogView, today string, qualifies func(day string) bool) int {
	if !utils.ValidateDay(today) {
		return 0
	}
	anchor := today
	if !qualifies(today) {
		if _, decided := view.Entry(today); decided {
			return 0
		}
		anchor = utils.AddDays(today, -1)
		if !qualifies(anchor) {
			return 0
		}
	}

	count := 0
	for day := anchor; qualifies(day); day = utils.AddDays(day, -1) {
		count++
	}
	return count
}

// HabitStreak returns the current streak of habitID as of today.
func HabitStreak(habitID string, view LogView, today string) int {
	return walk(view, today, func(day string) bool {
		return view.IsCompleted(habitID, day)
	})
}

// CompletedDates returns the days habitID was completed, most recent first.
func CompletedDates(habitID string, view LogView) []string {
	var dates []string
	for _, day := range view.Days() {
		if view.IsCompleted(habitID, day) {
			dates = append(dates, day)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates
}

// LongestStreak returns the longest run of consecutive completion days for habitID.
func LongestStreak(habitID string, view LogView) int {
	dates := CompletedDates(habitID, view)
	longest, run := 0, 0
	prev := ""
	for _, day := range dates {
		if prev != "" && utils.AddDays(prev, -1) == day {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prev = day
	}
	return longest
}

// Threshold returns how many applicable habits must be completed for a day to
// count toward the overall streak. Zero applicable habits never qualify.
func Threshold(applicable int) int {
	if applicable <= 0 {
		return 0
	}
	n := int(math.Floor(float64(applicable) * constants.OverallStreakRatio))
	if n < 1 {
		n = 1
	}
	return n
}

// Applicable returns the habits that count on day: not archived and created on
// or before it.
func Applicable(habits []models.Habit, day string) []models.Habit {
	var out []models.Habit
	for _, h := range habits {
		if h.IsArchived {
			continue
		}
		if !h.CreatedAt.IsZero() && utils.DayKey(h.CreatedAt) > day {
			continue
		}
		out = append(out, h)
	}
	return out
}

// completedOn counts the applicable habits completed on day.
func completedOn(applicable []models.Habit, view LogView, day string) int {
	e, ok := view.Entry(day)
	if !ok {
		return 0
	}
	n := 0
	for _, h := range applicable {
		if e.Has(h.ID) {
			n++
		}
	}
	return n
}

func qualifiesOverall(habits []models.Habit, view LogView, day string) bool {
	applicable := Applicable(habits, day)
	if len(applicable) == 0 {
		return false
	}
	return completedOn(applicable, view, day) >= Threshold(len(applicable))
}

// OverallStreak returns the cross-habit streak as of today.
func OverallStreak(habits []models.Habit, view LogView, today string) int {
	return walk(view, today, func(day string) bool {
		return qualifiesOverall(habits, view, day)
	})
}

// WeeklyAverage is the raw completion count of known habits over today and the
// six prior days, divided by seven.
func WeeklyAverage(habits []models.Habit, view LogView, today string) float64 {
	known := make(map[string]bool, len(habits))
	for _, h := range habits {
		known[h.ID] = true
	}

	total := 0
	for i := 0; i < constants.WeeklyWindowDays; i++ {
		e, ok := view.Entry(utils.AddDays(today, -i))
		if !ok {
			continue
		}
		for _, id := range e.CompletedHabits {
			if known[id] {
				total++
			}
		}
	}
	return float64(total) / float64(constants.WeeklyWindowDays)
}

// BestStreak is the larger of the current overall streak and the recorded best.
func BestStreak(current, recorded int) int {
	if recorded > current {
		return recorded
	}
	return current
}

// HabitStatuses derives the per-habit statistics for every habit.
func HabitStatuses(habits []models.Habit, view LogView, today string) []models.HabitStatus {
	statuses := make([]models.HabitStatus, 0, len(habits))
	for _, h := range habits {
		dates := CompletedDates(h.ID, view)
		if dates == nil {
			dates = []string{}
		}
		todayEntry, _ := view.Entry(today)
		statuses = append(statuses, models.HabitStatus{
			Habit:            h,
			CompletedToday:   todayEntry.Has(h.ID),
			CurrentStreak:    HabitStreak(h.ID, view, today),
			LongestStreak:    LongestStreak(h.ID, view),
			TotalCompletions: len(dates),
			CompletedDates:   dates,
		})
	}
	return statuses
}

// Insights computes the rollup statistics as of today.
func Insights(habits []models.Habit, view LogView, today string, recordedBest int) models.Insights {
	current := OverallStreak(habits, view, today)

	active := 0
	completedToday := 0
	todayEntry, _ := view.Entry(today)
	for _, h := range habits {
		if h.IsArchived {
			continue
		}
		active++
		if todayEntry.Has(h.ID) {
			completedToday++
		}
	}

	return models.Insights{
		WeeklyAverage:    WeeklyAverage(habits, view, today),
		CurrentStreak:    current,
		BestStreak:       BestStreak(current, recordedBest),
		TotalDaysTracked: len(view.Days()),
		CompletedToday:   completedToday,
		ActiveHabits:     active,
	}
}

// DayRates returns the completion fraction of applicable habits for every day
// in [from, to], oldest first.
func DayRates(habits []models.Habit, view LogView, from, to string) ([]models.DayRate, error) {
	span, err := utils.DaysBetween(from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if span < 0 {
		return nil, fmt.Errorf("%w: range start %s is after end %s", apperrors.ErrValidation, from, to)
	}

	rates := make([]models.DayRate, 0, span+1)
	for i := 0; i <= span; i++ {
		day := utils.AddDays(from, i)
		applicable := Applicable(habits, day)
		rate := models.DayRate{Day: day, Applicable: len(applicable)}
		rate.Completed = completedOn(applicable, view, day)
		if rate.Applicable > 0 {
			rate.Rate = float64(rate.Completed) / float64(rate.Applicable)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}
