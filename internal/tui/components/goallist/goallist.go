package goallist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/progressquest/internal/models"
)

type AddGoalMsg struct{}

type EditGoalMsg struct {
	Goal models.Goal
}

type DeleteGoalMsg struct {
	Goal models.Goal
}

type ShowGoalMsg struct {
	Goal models.Goal
}

type Item struct {
	Goal models.Goal
	bar  *progress.Model
}

func (i Item) Title() string {
	if i.Goal.IsMastered() {
		return "★ " + i.Goal.Name
	}
	return i.Goal.Name
}

func (i Item) Description() string {
	g := i.Goal
	pct := g.Percent() / 100
	if pct > 1 {
		pct = 1
	}
	desc := fmt.Sprintf("%s %5.1f%%  Lv %d  %s/%s", i.bar.ViewAs(pct), g.Percent(), g.Level,
		amount(g.Type, g.Current), amount(g.Type, g.Target))
	if !g.HasID() {
		desc += "  (not synced)"
	}
	return desc
}

func (i Item) FilterValue() string { return i.Goal.Name }

func amount(t models.GoalType, v float64) string {
	if t == models.GoalTypeFinancial {
		return fmt.Sprintf("$%g", v)
	}
	return fmt.Sprintf("%g", v)
}

type KeyMap struct {
	Add    key.Binding
	Edit   key.Binding
	Delete key.Binding
	Show   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "update"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Show: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "details"),
		),
	}
}

type Model struct {
	list list.Model
	keys KeyMap
	bar  *progress.Model
}

func New(goals []models.Goal, width, height int) Model {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(20), progress.WithoutPercentage())
	m := Model{keys: DefaultKeyMap(), bar: &bar}

	l := list.New(m.items(goals), list.NewDefaultDelegate(), width, height)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	m.list = l
	return m
}

func (m Model) items(goals []models.Goal) []list.Item {
	items := make([]list.Item, len(goals))
	for i, g := range goals {
		items[i] = Item{Goal: g, bar: m.bar}
	}
	return items
}

func (m *Model) SetGoals(goals []models.Goal) {
	m.list.SetItems(m.items(goals))
}

// Selected returns the highlighted goal.
func (m Model) Selected() (models.Goal, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i.Goal, ok
}

func (m Model) Len() int {
	return len(m.list.Items())
}

func (m Model) Keys() KeyMap {
	return m.keys
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Add):
			return m, func() tea.Msg { return AddGoalMsg{} }
		case key.Matches(msg, m.keys.Edit):
			if g, ok := m.Selected(); ok {
				return m, func() tea.Msg { return EditGoalMsg{Goal: g} }
			}
		case key.Matches(msg, m.keys.Delete):
			if g, ok := m.Selected(); ok {
				return m, func() tea.Msg { return DeleteGoalMsg{Goal: g} }
			}
		case key.Matches(msg, m.keys.Show):
			if g, ok := m.Selected(); ok {
				return m, func() tea.Msg { return ShowGoalMsg{Goal: g} }
			}
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if len(m.list.Items()) == 0 && m.list.FilterState() != list.Filtering {
		return "\n  No goals yet.\n  Press 'a' to add one."
	}
	return m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height)
}
