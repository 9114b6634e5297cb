package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/tui/components/goallist"
	"github.com/julianstephens/progressquest/internal/validation"
)

type fakeEngine struct {
	set     models.GoalSet
	results chan sync.Result
	next    sync.Result
	forced  int
}

func (f *fakeEngine) LocalGoals() (models.GoalSet, error) { return f.set, nil }

func (f *fakeEngine) Synchronize(ctx context.Context, force bool) sync.Result {
	if force {
		f.forced++
	}
	return f.next
}

func (f *fakeEngine) Subscribe() (<-chan sync.Result, func()) { return f.results, func() {} }

func (f *fakeEngine) Syncing() bool { return false }

type fakeEditor struct {
	engine  *fakeEngine
	deleted []string
	updated map[string]editor.Changes
}

func (f *fakeEditor) Add(ctx context.Context, t models.GoalType, in validation.GoalInput) (editor.Outcome, error) {
	g := models.Goal{Name: in.Name, Current: in.Current, Target: in.Target, Level: 1, Type: t}
	f.engine.set = f.engine.set.With(t, append(f.engine.set.Of(t), g))
	return editor.Outcome{Goal: g, Created: true}, nil
}

func (f *fakeEditor) Update(ctx context.Context, t models.GoalType, ref string, c editor.Changes) (editor.Outcome, error) {
	if f.updated == nil {
		f.updated = make(map[string]editor.Changes)
	}
	f.updated[ref] = c
	return editor.Outcome{Goal: models.Goal{Name: ref, Type: t}}, nil
}

func (f *fakeEditor) Delete(ctx context.Context, t models.GoalType, ref string) (models.Goal, error) {
	f.deleted = append(f.deleted, ref)
	var kept []models.Goal
	var removed models.Goal
	for _, g := range f.engine.set.Of(t) {
		if goalRef(g) == ref {
			removed = g
			continue
		}
		kept = append(kept, g)
	}
	if removed.Name == "" {
		return models.Goal{}, errors.New("not found")
	}
	f.engine.set = f.engine.set.With(t, kept)
	return removed, nil
}

func newTestModel(t *testing.T, username string) (Model, *fakeEngine, *fakeEditor) {
	t.Helper()
	id := int64(4)
	eng := &fakeEngine{
		set: models.GoalSet{
			Skills: []models.Goal{
				{ID: &id, Name: "Go", Current: 3, Target: 10, Level: 1, Type: models.GoalTypeSkill},
				{Name: "Piano", Current: 0, Target: 50, Level: 1, Type: models.GoalTypeSkill},
			},
			Financial: []models.Goal{
				{Name: "Car", Current: 100, Target: 5000, Level: 1, Type: models.GoalTypeFinancial},
			},
		},
		results: make(chan sync.Result, 1),
	}
	ed := &fakeEditor{engine: eng}
	m := NewModel(eng, ed, username)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model), eng, ed
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelLoadsGoals(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")

	if m.skills.Len() != 2 || m.financial.Len() != 1 {
		t.Fatalf("lists = %d skills, %d financial", m.skills.Len(), m.financial.Len())
	}
	view := m.View()
	for _, want := range []string{"Skills (2)", "Financial (1)", "alice"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestSignedOutBanner(t *testing.T) {
	m, _, _ := newTestModel(t, "")
	if !strings.Contains(m.View(), "Not signed in") {
		t.Error("signed-out banner not shown")
	}
	if cmd := m.startSync(); cmd != nil {
		t.Error("manual sync started without a user")
	}
}

func TestTabSwitching(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")

	m, _ = send(t, m, keyMsg("tab"))
	if m.state != StateFinancial || m.activeType() != models.GoalTypeFinancial {
		t.Fatalf("after tab: state = %v", m.state)
	}
	m, _ = send(t, m, keyMsg("tab"))
	if m.state != StateSkills {
		t.Fatalf("tab did not wrap: state = %v", m.state)
	}
	m, _ = send(t, m, keyMsg("h"))
	if m.state != StateFinancial {
		t.Fatalf("shift-tab did not wrap: state = %v", m.state)
	}
}

func TestManualSync(t *testing.T) {
	m, eng, _ := newTestModel(t, "alice")
	eng.next = sync.Result{Success: true, Created: 1, Skills: 2, Financial: 1}

	m, cmd := send(t, m, keyMsg("s"))
	if cmd == nil || !m.syncing {
		t.Fatal("sync key did not start a sync")
	}
	m, next := send(t, m, cmd())
	if eng.forced != 1 {
		t.Errorf("forced syncs = %d, want 1", eng.forced)
	}
	if next != nil {
		t.Error("manual result re-armed the subscription")
	}
	if m.syncing {
		t.Error("still syncing after the result")
	}
	if !strings.Contains(m.View(), "Synced: 1 created") {
		t.Errorf("banner missing from view:\n%s", m.View())
	}
}

func TestSubscribedResult(t *testing.T) {
	m, eng, _ := newTestModel(t, "alice")

	eng.results <- sync.Result{Offline: true}
	msg := waitForSync(m.results)()
	m, next := send(t, m, msg)
	if next == nil {
		t.Error("subscription not re-armed")
	}
	if !strings.Contains(m.banner, "Offline") {
		t.Errorf("banner = %q", m.banner)
	}

	close(eng.results)
	if _, ok := waitForSync(m.results)().(subscriptionClosedMsg); !ok {
		t.Error("closed subscription not reported")
	}
}

func TestDeleteFlow(t *testing.T) {
	m, eng, ed := newTestModel(t, "alice")

	m, cmd := send(t, m, keyMsg("d"))
	if cmd == nil {
		t.Fatal("delete key produced no command")
	}
	msg, ok := cmd().(goallist.DeleteGoalMsg)
	if !ok || msg.Goal.Name != "Go" {
		t.Fatalf("got %#v, want DeleteGoalMsg for Go", msg)
	}
	m, _ = send(t, m, msg)
	if m.state != StateConfirmDelete || !strings.Contains(m.View(), "Go") {
		t.Fatalf("confirm dialog not shown: state = %v", m.state)
	}

	m, cmd = send(t, m, keyMsg("y"))
	if cmd == nil {
		t.Fatal("confirm produced no command")
	}
	m, _ = send(t, m, cmd())
	if len(ed.deleted) != 1 || ed.deleted[0] != "#4" {
		t.Errorf("deleted refs = %v, want [#4]", ed.deleted)
	}
	if m.state != StateSkills || m.skills.Len() != 1 {
		t.Errorf("after delete: state = %v, skills = %d", m.state, m.skills.Len())
	}
	if !strings.Contains(m.notice, `Deleted "Go"`) {
		t.Errorf("notice = %q", m.notice)
	}
	if len(eng.set.Skills) != 1 {
		t.Errorf("engine still holds %d skills", len(eng.set.Skills))
	}
}

func TestDeleteCancelled(t *testing.T) {
	m, _, ed := newTestModel(t, "alice")

	m, _ = send(t, m, goallist.DeleteGoalMsg{Goal: models.Goal{Name: "Piano"}})
	m, cmd := send(t, m, keyMsg("n"))
	if cmd != nil {
		t.Error("cancel produced a command")
	}
	if m.state != StateSkills || m.pendingDelete != nil || len(ed.deleted) != 0 {
		t.Errorf("cancel left state = %v, pending = %v, deleted = %v", m.state, m.pendingDelete, ed.deleted)
	}
}

func TestShowDetail(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")

	m, cmd := send(t, m, keyMsg("enter"))
	if cmd == nil {
		t.Fatal("enter produced no command")
	}
	m, _ = send(t, m, cmd())
	if m.state != StateDetail || m.detail.Goal == nil || m.detail.Goal.Name != "Go" {
		t.Fatalf("detail not shown: state = %v", m.state)
	}

	m, _ = send(t, m, keyMsg("esc"))
	if m.state != StateSkills {
		t.Errorf("esc returned to state %v", m.state)
	}
}

func TestGoalSavedNotices(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")
	g := models.Goal{Name: "Go", Current: 10, Target: 15, Level: 2}

	tests := []struct {
		name string
		msg  goalSavedMsg
		want string
	}{
		{"created", goalSavedMsg{outcome: editor.Outcome{Goal: g, Created: true}}, `Added "Go"`},
		{"level up", goalSavedMsg{outcome: editor.Outcome{Goal: g, Progress: models.Progress{LeveledUp: true}}}, "Go mastered! Level 2"},
		{"milestone", goalSavedMsg{outcome: editor.Outcome{Goal: g, Progress: models.Progress{Milestone: 25}}}, "Go passed 25%"},
		{"plain", goalSavedMsg{outcome: editor.Outcome{Goal: g}}, `Saved "Go"`},
		{"error", goalSavedMsg{err: errors.New("disk full")}, "Save failed: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := send(t, m, tt.msg)
			if !strings.Contains(got.notice, tt.want) {
				t.Errorf("notice = %q, want %q", got.notice, tt.want)
			}
		})
	}
}

func TestOpenForm(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")

	m, _ = send(t, m, keyMsg("tab"))
	m, _ = send(t, m, goallist.AddGoalMsg{})
	if m.state != StateForm || m.editing != nil {
		t.Fatalf("add form not open: state = %v", m.state)
	}
	if m.activeType() != models.GoalTypeFinancial {
		t.Errorf("form type = %s, want financial", m.activeType())
	}
	if !strings.Contains(m.View(), "New financial goal") {
		t.Errorf("form title missing:\n%s", m.View())
	}
}

func TestSaveCmdEditSendsOnlyChanges(t *testing.T) {
	m, _, ed := newTestModel(t, "alice")
	id := int64(4)
	g := models.Goal{ID: &id, Name: "Go", Current: 3, Target: 10, Level: 1}

	updated, _ := m.openForm(&g)
	m = updated.(Model)
	m.goalForm.Current = "7"

	save, err := m.saveCmd()
	if err != nil {
		t.Fatalf("saveCmd failed: %v", err)
	}
	save()
	c, ok := ed.updated["#4"]
	if !ok {
		t.Fatalf("no update for #4: %v", ed.updated)
	}
	if c.Current == nil || *c.Current != 7 || c.Name != nil || c.Target != nil || c.Deadline != nil {
		t.Errorf("changes = %+v, want only Current=7", c)
	}
}

func TestFormChanges(t *testing.T) {
	deadline := "2030-01-01"
	g := models.Goal{Name: "Car", Current: 100, Target: 5000, Deadline: &deadline}

	fm := newGoalFormModel(&g)
	if fm.Current != "100" || fm.Target != "5000" || fm.Deadline != deadline {
		t.Fatalf("form model = %+v", fm)
	}

	fm.Name = " Truck "
	fm.Target = "$6,000"
	fm.Deadline = ""
	c, err := fm.changes(g)
	if err != nil {
		t.Fatalf("changes failed: %v", err)
	}
	if c.Name == nil || *c.Name != "Truck" {
		t.Errorf("Name = %v", c.Name)
	}
	if c.Target == nil || *c.Target != 6000 {
		t.Errorf("Target = %v", c.Target)
	}
	if c.Deadline == nil || *c.Deadline != "" {
		t.Errorf("Deadline = %v, want cleared", c.Deadline)
	}
	if c.Current != nil {
		t.Errorf("Current = %v, want unchanged", *c.Current)
	}

	fm.Current = "lots"
	if _, err := fm.changes(g); err == nil {
		t.Error("expected an error for a non-numeric amount")
	}
}

func TestGoalRef(t *testing.T) {
	id := int64(9)
	if got := goalRef(models.Goal{ID: &id, Name: "Go"}); got != "#9" {
		t.Errorf("goalRef(with id) = %q", got)
	}
	if got := goalRef(models.Goal{Name: "Go"}); got != "Go" {
		t.Errorf("goalRef(local) = %q", got)
	}
}

func TestQuit(t *testing.T) {
	m, _, _ := newTestModel(t, "alice")
	m, cmd := send(t, m, keyMsg("q"))
	if !m.quitting || cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "" {
		t.Error("view not empty after quit")
	}
}
