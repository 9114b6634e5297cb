package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/progressquest/internal/models"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case StateSkills:
		content = docStyle.Render(m.skills.View())
	case StateFinancial:
		content = docStyle.Render(m.financial.View())
	case StateDetail:
		content = docStyle.Render(m.detail.View())
	case StateForm:
		content = docStyle.Render(m.form.View())
	case StateConfirmDelete:
		content = m.viewConfirmDelete()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewTabs(),
		m.viewStatus(),
		content,
		m.help.View(m),
	)
}

func (m Model) viewTabs() string {
	titles := []string{
		fmt.Sprintf("Skills (%d)", m.skills.Len()),
		fmt.Sprintf("Financial (%d)", m.financial.Len()),
	}
	active := 0
	if m.activeType() == models.GoalTypeFinancial {
		active = 1
	}

	var tabs []string
	for i, title := range titles {
		if i == active {
			tabs = append(tabs, activeTabStyle.Render(title))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(title))
		}
	}
	if m.username != "" {
		tabs = append(tabs, mutedStyle.Render("  "+m.username))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m Model) viewStatus() string {
	status := m.bannerStyle(m.banner)
	if m.syncing {
		status = m.spinner.View() + " Syncing..."
	}
	if m.notice != "" {
		if status != "" {
			status += "  "
		}
		status += m.notice
	}
	return status
}

func (m Model) viewConfirmDelete() string {
	name := ""
	if m.pendingDelete != nil {
		name = m.pendingDelete.Name
	}
	return lipgloss.Place(m.width, m.height-4,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center,
			dangerStyle.Render(fmt.Sprintf("Delete %q and its history?", name)),
			"",
			"[y] Yes",
			"[n] No",
		),
	)
}
