package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/models"
)

var (
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(12)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type Model struct {
	viewport viewport.Model
	Goal     *models.Goal
	now      func() time.Time
}

func New(width, height int) Model {
	return Model{viewport: viewport.New(width, height), now: time.Now}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.Goal == nil {
		return "No goal selected."
	}
	return m.viewport.View()
}

func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.Render()
}

func (m *Model) SetGoal(g models.Goal) {
	m.Goal = &g
	m.viewport.GotoTop()
	m.Render()
}

func (m *Model) Render() {
	if m.Goal == nil {
		m.viewport.SetContent("")
		return
	}
	g := m.Goal

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", nameStyle.Render(g.Name))
	row := func(label, value string) {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(label), value)
	}
	row("Type", string(g.Type))
	row("Level", fmt.Sprintf("%d", g.Level))
	row("Progress", fmt.Sprintf("%g / %g (%.1f%%)", g.Current, g.Target, g.Percent()))
	if g.Deadline != nil {
		row("Deadline", *g.Deadline)
	}
	switch p := g.Prediction(m.now()); {
	case g.IsMastered():
		row("Status", "mastered")
	case p != nil:
		row("Projected", p.Format(constants.DateFormat))
	default:
		row("Projected", "not enough history")
	}
	if g.HasID() {
		row("Server id", fmt.Sprintf("%d", *g.ID))
	} else {
		row("Server id", "not synced yet")
	}

	b.WriteString("\nHistory\n")
	if len(g.History) == 0 {
		b.WriteString(historyStyle.Render("  none") + "\n")
	}
	for i := len(g.History) - 1; i >= 0; i-- {
		h := g.History[i]
		fmt.Fprintf(&b, "  %s  %g\n", historyStyle.Render(shortDate(h.Date)), h.Value)
	}
	m.viewport.SetContent(b.String())
}

func shortDate(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.Local().Format("2006-01-02 15:04")
	}
	return s
}
