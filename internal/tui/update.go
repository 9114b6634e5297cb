package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/tui/components/goallist"
)

// syncResultMsg carries a finished sync, from the subscription or a manual request.
type syncResultMsg struct {
	result sync.Result
	manual bool
}

// subscriptionClosedMsg means the engine stopped delivering results.
type subscriptionClosedMsg struct{}

type goalSavedMsg struct {
	outcome editor.Outcome
	err     error
}

type goalDeletedMsg struct {
	goal models.Goal
	err  error
}

func waitForSync(results <-chan sync.Result) tea.Cmd {
	return func() tea.Msg {
		r, ok := <-results
		if !ok {
			return subscriptionClosedMsg{}
		}
		return syncResultMsg{result: r}
	}
}

func (m Model) syncNow() tea.Cmd {
	return func() tea.Msg {
		return syncResultMsg{result: m.engine.Synchronize(m.ctx, true), manual: true}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		h, v := docStyle.GetFrameSize()
		listHeight := msg.Height - v - 4
		m.skills.SetSize(msg.Width-h, listHeight)
		m.financial.SetSize(msg.Width-h, listHeight)
		m.detail.SetSize(msg.Width-h, listHeight)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case syncResultMsg:
		return m.handleSyncResult(msg)

	case subscriptionClosedMsg:
		return m, nil

	case goalSavedMsg:
		return m.handleGoalSaved(msg)

	case goalDeletedMsg:
		m.pendingDelete = nil
		m.state = m.previousState
		if msg.err != nil {
			m.notice = dangerStyle.Render("Delete failed: " + msg.err.Error())
			return m, nil
		}
		m.notice = fmt.Sprintf("Deleted %q", msg.goal.Name)
		m.reload()
		return m, m.startSync()

	case goallist.AddGoalMsg:
		return m.openForm(nil)

	case goallist.EditGoalMsg:
		g := msg.Goal
		return m.openForm(&g)

	case goallist.DeleteGoalMsg:
		g := msg.Goal
		m.pendingDelete = &g
		m.previousState = m.state
		m.state = StateConfirmDelete
		return m, nil

	case goallist.ShowGoalMsg:
		m.previousState = m.state
		m.state = StateDetail
		m.detail.SetGoal(msg.Goal)
		return m, nil
	}

	switch m.state {
	case StateForm:
		return m.updateForm(msg)
	case StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	case StateDetail:
		return m.updateDetail(msg)
	}
	return m.updateBrowse(msg)
}

func (m Model) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			m.state = (m.state + 1) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.ShiftTab):
			m.state = (m.state - 1 + tabCount) % tabCount
			return m, nil
		case key.Matches(msg, m.keys.Sync):
			return m, m.startSync()
		}
	}

	list := m.activeList()
	updated, cmd := list.Update(msg)
	*list = updated
	return m, cmd
}

func (m Model) updateDetail(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()
		case key.Matches(msg, m.keys.Back):
			m.state = m.previousState
			return m, nil
		case key.Matches(msg, m.keys.Edit):
			if m.detail.Goal != nil {
				g := *m.detail.Goal
				m.state = m.previousState
				return m.openForm(&g)
			}
		}
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.pendingDelete == nil {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Confirm):
		g := *m.pendingDelete
		t := m.activeType()
		ed, ctx := m.editor, m.ctx
		return m, func() tea.Msg {
			deleted, err := ed.Delete(ctx, t, goalRef(g))
			return goalDeletedMsg{goal: deleted, err: err}
		}
	case key.Matches(keyMsg, m.keys.Cancel):
		m.pendingDelete = nil
		m.state = m.previousState
	}
	return m, nil
}

func (m Model) openForm(g *models.Goal) (tea.Model, tea.Cmd) {
	m.previousState = m.state
	m.state = StateForm
	m.editing = g
	m.goalForm = newGoalFormModel(g)
	m.form = NewGoalForm(m.goalForm, m.activeType(), g == nil)
	m.notice = ""
	return m, m.form.Init()
}

func (m Model) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.state = m.previousState
		save, err := m.saveCmd()
		if err != nil {
			m.notice = dangerStyle.Render(err.Error())
			return m, nil
		}
		return m, save
	case huh.StateAborted:
		m.state = m.previousState
		m.editing = nil
		return m, nil
	}
	return m, cmd
}

func (m Model) saveCmd() (tea.Cmd, error) {
	t := m.activeType()
	ed, ctx := m.editor, m.ctx

	if m.editing == nil {
		in, err := m.goalForm.input()
		if err != nil {
			return nil, err
		}
		return func() tea.Msg {
			out, err := ed.Add(ctx, t, in)
			return goalSavedMsg{outcome: out, err: err}
		}, nil
	}

	changes, err := m.goalForm.changes(*m.editing)
	if err != nil {
		return nil, err
	}
	ref := goalRef(*m.editing)
	return func() tea.Msg {
		out, err := ed.Update(ctx, t, ref, changes)
		return goalSavedMsg{outcome: out, err: err}
	}, nil
}

func (m Model) handleGoalSaved(msg goalSavedMsg) (tea.Model, tea.Cmd) {
	m.editing = nil
	if msg.err != nil {
		m.notice = dangerStyle.Render("Save failed: " + msg.err.Error())
		return m, nil
	}
	m.reload()

	out := msg.outcome
	switch {
	case out.Created:
		m.notice = successStyle.Render(fmt.Sprintf("Added %q", out.Goal.Name))
	case out.LeveledUp:
		m.notice = masteryStyle.Render(fmt.Sprintf("★ %s mastered! Level %d, next target %g", out.Goal.Name, out.Goal.Level, out.Goal.Target))
	case out.Milestone > 0:
		m.notice = successStyle.Render(fmt.Sprintf("%s passed %d%%", out.Goal.Name, out.Milestone))
	case out.BandUp:
		m.notice = successStyle.Render(fmt.Sprintf("%s is now at %.0f%%", out.Goal.Name, out.Goal.Percent()))
	default:
		m.notice = fmt.Sprintf("Saved %q", out.Goal.Name)
	}
	// The engine schedules its own background sync after a local write.
	m.syncing = m.engine.Syncing()
	return m, nil
}

func (m *Model) startSync() tea.Cmd {
	if m.username == "" {
		return nil
	}
	m.syncing = true
	return m.syncNow()
}

func (m Model) handleSyncResult(msg syncResultMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if !msg.manual {
		cmd = waitForSync(m.results)
	}
	r := msg.result

	switch r.State() {
	case sync.StateQueued:
		return m, cmd
	case sync.StateSuccess:
		m.bannerStyle = successStyle.Render
		m.reload()
	case sync.StateThrottled:
		m.bannerStyle = mutedStyle.Render
	case sync.StateOffline:
		m.bannerStyle = warningStyle.Render
	default:
		m.bannerStyle = dangerStyle.Render
	}
	m.syncing = m.engine.Syncing()
	m.banner = r.Message()
	return m, cmd
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// goalRef addresses g the way the editor resolves goals.
func goalRef(g models.Goal) string {
	if g.HasID() {
		return fmt.Sprintf("#%d", *g.ID)
	}
	return g.Name
}
