package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/tui/components/detail"
	"github.com/julianstephens/progressquest/internal/tui/components/goallist"
	"github.com/julianstephens/progressquest/internal/validation"
)

// Engine is the part of the sync engine the dashboard reads from.
type Engine interface {
	LocalGoals() (models.GoalSet, error)
	Synchronize(ctx context.Context, force bool) sync.Result
	Subscribe() (<-chan sync.Result, func())
	Syncing() bool
}

// Editor applies goal edits.
type Editor interface {
	Add(ctx context.Context, t models.GoalType, in validation.GoalInput) (editor.Outcome, error)
	Update(ctx context.Context, t models.GoalType, ref string, c editor.Changes) (editor.Outcome, error)
	Delete(ctx context.Context, t models.GoalType, ref string) (models.Goal, error)
}

type SessionState int

const (
	StateSkills SessionState = iota
	StateFinancial
	StateDetail
	StateForm
	StateConfirmDelete
)

const tabCount = 2

type GoalFormModel struct {
	Name     string
	Current  string
	Target   string
	Deadline string
}

type Model struct {
	engine   Engine
	editor   Editor
	username string
	ctx      context.Context

	state         SessionState
	previousState SessionState
	keys          KeyMap
	help          help.Model
	spinner       spinner.Model

	skills    goallist.Model
	financial goallist.Model
	detail    detail.Model

	form          *huh.Form
	goalForm      *GoalFormModel
	editing       *models.Goal // nil while adding
	pendingDelete *models.Goal

	results     <-chan sync.Result
	unsubscribe func()
	syncing     bool
	banner      string
	bannerStyle func(...string) string
	notice      string

	quitting bool
	width    int
	height   int
}

func NewModel(engine Engine, ed Editor, username string) Model {
	results, unsubscribe := engine.Subscribe()

	m := Model{
		engine:      engine,
		editor:      ed,
		username:    username,
		ctx:         context.Background(),
		state:       StateSkills,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.Dot)),
		skills:      goallist.New(nil, 0, 0),
		financial:   goallist.New(nil, 0, 0),
		detail:      detail.New(0, 0),
		results:     results,
		unsubscribe: unsubscribe,
		bannerStyle: mutedStyle.Render,
	}
	if username == "" {
		m.banner = "Not signed in: goals stay on this device until you run 'pquest login'"
		m.bannerStyle = warningStyle.Render
	}
	m.reload()
	return m
}

// activeType is the goal type of the current or most recent tab.
func (m Model) activeType() models.GoalType {
	state := m.state
	if state > StateFinancial {
		state = m.previousState
	}
	if state == StateFinancial {
		return models.GoalTypeFinancial
	}
	return models.GoalTypeSkill
}

func (m *Model) activeList() *goallist.Model {
	if m.activeType() == models.GoalTypeFinancial {
		return &m.financial
	}
	return &m.skills
}

func (m *Model) reload() {
	set, err := m.engine.LocalGoals()
	if err != nil {
		logger.Debug("Could not load goals for dashboard", "error", err)
		return
	}
	m.skills.SetGoals(set.Skills)
	m.financial.SetGoals(set.Financial)

	if m.detail.Goal != nil {
		for _, g := range set.Of(m.detail.Goal.Type) {
			if g.SameAs(*m.detail.Goal) {
				m.detail.SetGoal(g)
				break
			}
		}
	}
}

func (m Model) ShortHelp() []key.Binding {
	switch m.state {
	case StateDetail:
		return []key.Binding{m.keys.Back, m.keys.Edit, m.keys.Quit}
	case StateConfirmDelete:
		return []key.Binding{m.keys.Confirm, m.keys.Cancel}
	case StateForm:
		return nil
	}
	return []key.Binding{m.keys.Tab, m.keys.Add, m.keys.Edit, m.keys.Delete, m.keys.Sync, m.keys.Quit, m.keys.Help}
}

func (m Model) FullHelp() [][]key.Binding {
	return m.keys.FullHelp()
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSync(m.results), m.spinner.Tick)
}

// WithContext bounds the syncs the dashboard starts.
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}
