package utils

import (
	"testing"
	"time"
)

func TestDayKeyUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC-8", -8*60*60)
	// 20:00 local on Jan 1st is already Jan 2nd in UTC
	ts := time.Date(2024, 1, 1, 20, 0, 0, 0, loc)
	if got := DayKey(ts); got != "2024-01-02" {
		t.Errorf("DayKey() = %q, want %q", got, "2024-01-02")
	}
}

func TestValidateDay(t *testing.T) {
	tests := []struct {
		day  string
		want bool
	}{
		{"2024-02-29", true},
		{"2023-02-29", false},
		{"2024-1-5", false},
		{"20240105", false},
		{"", false},
		{"2024-12-31", true},
	}
	for _, tt := range tests {
		t.Run(tt.day, func(t *testing.T) {
			if got := ValidateDay(tt.day); got != tt.want {
				t.Errorf("ValidateDay(%q) = %v, want %v", tt.day, got, tt.want)
			}
		})
	}
}

func TestAddDays(t *testing.T) {
	tests := []struct {
		day  string
		n    int
		want string
	}{
		{"2024-03-01", -1, "2024-02-29"},
		{"2023-12-31", 1, "2024-01-01"},
		{"2024-03-10", 0, "2024-03-10"},
		{"bogus", 1, "bogus"},
	}
	for _, tt := range tests {
		if got := AddDays(tt.day, tt.n); got != tt.want {
			t.Errorf("AddDays(%q, %d) = %q, want %q", tt.day, tt.n, got, tt.want)
		}
	}
}

func TestDaysBetween(t *testing.T) {
	n, err := DaysBetween("2024-01-01", "2024-03-01")
	if err != nil {
		t.Fatalf("DaysBetween() error = %v", err)
	}
	if n != 60 {
		t.Errorf("DaysBetween() = %d, want 60", n)
	}
	if _, err := DaysBetween("x", "2024-01-01"); err == nil {
		t.Error("DaysBetween() with malformed input should fail")
	}
}

func TestRetentionCutoff(t *testing.T) {
	asOf := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	if got := RetentionCutoff(asOf); got != "2024-10-18" {
		t.Errorf("RetentionCutoff() = %q, want %q", got, "2024-10-18")
	}
}

func TestResolveDay(t *testing.T) {
	now := time.Date(2024, 5, 5, 23, 30, 0, 0, time.UTC)
	got, err := ResolveDay("", now)
	if err != nil || got != "2024-05-05" {
		t.Errorf("ResolveDay(\"\") = %q, %v", got, err)
	}
	if got, _ := ResolveDay("Today", now); got != "2024-05-05" {
		t.Errorf("ResolveDay(Today) = %q", got)
	}
	if got, _ := ResolveDay("yesterday", now); got != "2024-05-04" {
		t.Errorf("ResolveDay(yesterday) = %q", got)
	}
	if got, _ := ResolveDay("2024-02-29", now); got != "2024-02-29" {
		t.Errorf("ResolveDay(explicit) = %q", got)
	}
	if _, err := ResolveDay("05/05/2024", now); err == nil {
		t.Error("ResolveDay() should reject non ISO dates")
	}
}
