package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
)

// DayKey truncates a timestamp to its UTC calendar date (YYYY-MM-DD).
// Every completion log key is produced here so that streaks never mix
// local-day and UTC-day boundaries.
func DayKey(t time.Time) string {
	return t.UTC().Format(constants.DateFormat)
}

// ParseDay parses a YYYY-MM-DD key into midnight UTC.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DateFormat, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD): %w", day, err)
	}
	return t, nil
}

// ValidateDay checks if the string is a well-formed day key.
func ValidateDay(day string) bool {
	t, err := time.ParseInLocation(constants.DateFormat, day, time.UTC)
	return err == nil && t.Format(constants.DateFormat) == day
}

// AddDays shifts a day key by n calendar days. Malformed keys are returned unchanged.
func AddDays(day string, n int) string {
	t, err := ParseDay(day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat)
}

// DaysBetween returns the number of calendar days from a to b (b - a).
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDay(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDay(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// RetentionCutoff returns the first day kept by retention cleanup as of asOf.
func RetentionCutoff(asOf time.Time) string {
	return DayKey(asOf.UTC().AddDate(-constants.RetentionYears, 0, 0))
}

// ResolveDay returns the day key for an optional user-supplied date,
// defaulting to the UTC day of now.
func ResolveDay(input string, now time.Time) (string, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "today":
		return DayKey(now), nil
	case "yesterday":
		return AddDays(DayKey(now), -1), nil
	}
	if !ValidateDay(input) {
		return "", fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", input)
	}
	return input, nil
}
