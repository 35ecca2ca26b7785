package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	streakStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("208")).
			Bold(true)
)

func checkMark(done bool) string {
	if done {
		return doneStyle.Render("✓")
	}
	return pendingStyle.Render("·")
}

func okLine(label string) string {
	return fmt.Sprintf("%s %s: OK", doneStyle.Render("✓"), label)
}

func warnLine(label string) string {
	return fmt.Sprintf("%s %s: WARNING", warnStyle.Render("⚠"), label)
}

func failLine(label string) string {
	return fmt.Sprintf("%s %s: FAIL", errStyle.Render("❌"), label)
}

// rateBar draws a ten cell bar for a completion rate in [0, 1]
func rateBar(rate float64) string {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	filled := int(rate*10 + 0.5)
	return doneStyle.Render(strings.Repeat("█", filled)) + pendingStyle.Render(strings.Repeat("░", 10-filled))
}

func moodLabel(m *int) string {
	if m == nil {
		return "-"
	}
	return fmt.Sprintf("%d/%d", *m, constants.MoodMax)
}

func categoryLabel(c models.Category) string {
	if c == "" {
		return "-"
	}
	return string(c)
}
