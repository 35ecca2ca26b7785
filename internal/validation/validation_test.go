package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/julianstephens/daystreak/internal/errors"
	"github.com/julianstephens/daystreak/internal/models"
)

func intPtr(i int) *int { return &i }

func TestValidateHabitName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "Read", "Read", false},
		{"trimmed", "  Meditate \t", "Meditate", false},
		{"empty", "", "", true},
		{"whitespace only", "   ", "", true},
		{"too long", strings.Repeat("x", 101), "", true},
		{"exactly at limit", strings.Repeat("ü", 100), strings.Repeat("ü", 100), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateHabitName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHabitName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
			if got != tt.want {
				t.Errorf("ValidateHabitName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateHabit(t *testing.T) {
	good := models.Habit{ID: "h", Name: "Run", Category: models.CategoryHealth, Priority: models.PriorityImportant}
	if err := ValidateHabit(good); err != nil {
		t.Errorf("ValidateHabit(good) error = %v", err)
	}

	badCategory := good
	badCategory.Category = "Sports"
	if err := ValidateHabit(badCategory); err == nil {
		t.Error("ValidateHabit() accepted an unknown category")
	}

	badPriority := good
	badPriority.Priority = 7
	if err := ValidateHabit(badPriority); err == nil {
		t.Error("ValidateHabit() accepted an unknown priority")
	}
}

func TestValidateSnapshotAndFix(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := models.Snapshot{
		Habits: []models.Habit{
			{ID: "a", Name: "Read", Category: models.CategoryStudy, CreatedAt: created},
			{ID: "a", Name: "Read again", Category: models.CategoryStudy, CreatedAt: created},
			{ID: "b", Name: " ", Category: models.CategoryHealth, CreatedAt: created},
			{ID: "c", Name: "Walk", Category: "Outdoors", Priority: 9, CreatedAt: created},
		},
		DailyData: map[string]models.DayEntry{
			"2024-01-02": {CompletedHabits: []string{"a", "ghost"}, Mood: intPtr(9)},
			"not-a-day":  {CompletedHabits: []string{"a"}},
			"2024-01-03": {CompletedHabits: []string{"c"}, Reflection: strings.Repeat("r", 300)},
		},
	}

	result := ValidateSnapshot(s)
	got := map[ConflictType]int{}
	for _, c := range result.Conflicts {
		got[c.Type]++
	}
	want := map[ConflictType]int{
		ConflictDuplicateHabitID:  1,
		ConflictEmptyHabitName:    1,
		ConflictInvalidCategory:   1,
		ConflictInvalidPriority:   1,
		ConflictInvalidDateKey:    1,
		ConflictDanglingHabitID:   1,
		ConflictMoodOutOfRange:    1,
		ConflictReflectionTooLong: 1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("conflict counts mismatch (-want +got):\n%s", diff)
	}

	fixed, actions := FixSnapshot(s)
	if len(actions) != len(result.Conflicts) {
		t.Errorf("len(actions) = %d, want %d", len(actions), len(result.Conflicts))
	}
	if after := ValidateSnapshot(fixed); after.HasConflicts() {
		t.Errorf("fixed snapshot still has conflicts:\n%s", after.FormatReport())
	}
	if len(fixed.Habits) != 2 || fixed.Habits[0].Name != "Read" {
		t.Errorf("fixed habits = %+v", fixed.Habits)
	}
	if diff := cmp.Diff([]string{"a"}, fixed.DailyData["2024-01-02"].CompletedHabits); diff != "" {
		t.Errorf("dangling id not scrubbed (-want +got):\n%s", diff)
	}

	// the input is left untouched
	if len(s.Habits) != 4 || len(s.DailyData) != 3 {
		t.Error("FixSnapshot modified its input")
	}
}

func TestFixSnapshotNoConflicts(t *testing.T) {
	s := models.NewSnapshot()
	fixed, actions := FixSnapshot(s)
	if actions != nil {
		t.Errorf("actions = %v, want none", actions)
	}
	if !fixed.IsEmpty() {
		t.Error("fixed snapshot should be empty")
	}
	r := ValidateSnapshot(s)
	if r.FormatReport() != "No conflicts detected." {
		t.Errorf("FormatReport() = %q", r.FormatReport())
	}
}

func TestScrubDangling(t *testing.T) {
	s := models.Snapshot{
		Habits: []models.Habit{{ID: "a"}},
		DailyData: map[string]models.DayEntry{
			"2024-01-01": {CompletedHabits: []string{"a", "x", "y"}},
		},
	}
	if n := ScrubDangling(&s); n != 2 {
		t.Errorf("ScrubDangling() = %d, want 2", n)
	}
}
