package detail

import (
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/progressquest/internal/models"
)

func TestRender(t *testing.T) {
	m := New(80, 30)
	if got := m.View(); got != "No goal selected." {
		t.Fatalf("empty view = %q", got)
	}

	deadline := "2030-06-01"
	m.SetGoal(models.Goal{
		Name: "Piano", Current: 20, Target: 50, Level: 2, Type: models.GoalTypeSkill, Deadline: &deadline,
		History: []models.HistoryEntry{
			{Date: "2026-01-01", Value: 10},
			{Date: "2026-02-01", Value: 20},
		},
	})
	view := m.View()
	for _, want := range []string{"Piano", "skill", "20 / 50 (40.0%)", "2030-06-01", "not synced yet"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if newer, older := strings.Index(view, "2026-02-01"), strings.Index(view, "2026-01-01"); newer < 0 || older < 0 || newer > older {
		t.Errorf("history not newest first:\n%s", view)
	}
}

func TestRenderMastered(t *testing.T) {
	m := New(80, 30)
	m.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	id := int64(3)
	m.SetGoal(models.Goal{ID: &id, Name: "Go", Current: 10, Target: 10, Level: 1})

	view := m.View()
	for _, want := range []string{"mastered", "Server id", "  none"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
