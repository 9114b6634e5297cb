package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/sync"
)

var (
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	Danger  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	Muted   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	Heading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	Mastery = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

const barWidth = 20

// Bar draws a fixed-width progress bar for g.
func Bar(g models.Goal) string {
	pct := g.Percent()
	filled := int(math.Round(pct / 100 * barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	if g.IsMastered() {
		return Mastery.Render(bar)
	}
	return Success.Render(bar)
}

// Amount formats a goal value; financial goals get a currency sign.
func Amount(t models.GoalType, v float64) string {
	s := fmt.Sprintf("%g", v)
	if v == math.Trunc(v) {
		s = fmt.Sprintf("%.0f", v)
	}
	if t == models.GoalTypeFinancial {
		return "$" + s
	}
	return s
}

// GoalLine renders one goal as a single row.
func GoalLine(g models.Goal, now time.Time) string {
	id := Muted.Render("local")
	if g.HasID() {
		id = Muted.Render(fmt.Sprintf("#%d", *g.ID))
	}
	line := fmt.Sprintf("%-24s %s %5.1f%%  %s/%s  Lv %d  %s",
		g.Name, Bar(g), g.Percent(), Amount(g.Type, g.Current), Amount(g.Type, g.Target), g.Level, id)

	if g.IsMastered() {
		return line + "  " + Mastery.Render("★ mastered")
	}
	if g.Deadline != nil {
		line += "  " + Muted.Render("due "+*g.Deadline)
	}
	if p := g.Prediction(now); p != nil {
		line += "  " + Muted.Render("eta "+p.Format(constants.DateFormat))
	}
	return line
}

// Celebrate describes what an edit achieved, or "" when nothing notable happened.
func Celebrate(g models.Goal, p models.Progress) string {
	switch {
	case p.LeveledUp:
		return Mastery.Render(fmt.Sprintf("★ %s mastered! Now level %d, next target %s", g.Name, g.Level, Amount(g.Type, g.Target)))
	case p.Milestone > 0:
		return Success.Render(fmt.Sprintf("%s passed %d%%", g.Name, p.Milestone))
	case p.BandUp:
		return Success.Render(fmt.Sprintf("%s is now at %.0f%%", g.Name, g.Percent()))
	}
	return ""
}

// SyncLine renders a sync result for the terminal.
func SyncLine(r sync.Result) string {
	switch r.State() {
	case sync.StateSuccess:
		return Success.Render("✓ " + r.Message())
	case sync.StateQueued, sync.StateThrottled:
		return Muted.Render("ℹ " + r.Message())
	case sync.StateOffline:
		return Warning.Render("⚠ " + r.Message())
	default:
		return Danger.Render("❌ " + r.Message())
	}
}

// Confirm asks a yes/no question. It defaults to no.
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
