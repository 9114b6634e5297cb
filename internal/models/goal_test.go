package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
)

func TestParseGoalType(t *testing.T) {
	tests := []struct {
		in      string
		want    GoalType
		wantErr bool
	}{
		{"skill", GoalTypeSkill, false},
		{"Skills", GoalTypeSkill, false},
		{"financial", GoalTypeFinancial, false},
		{" finance ", GoalTypeFinancial, false},
		{"hobby", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGoalType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGoalType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseGoalType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddHistoryCap(t *testing.T) {
	g := Goal{Name: "Padel", Target: 100, Level: 1}
	for i := 0; i < constants.MaxHistoryEntries; i++ {
		g.AddHistory(fmt.Sprintf("day-%02d", i), float64(i))
	}
	if len(g.History) != constants.MaxHistoryEntries {
		t.Fatalf("len(History) = %d, want %d", len(g.History), constants.MaxHistoryEntries)
	}

	g.AddHistory("day-30", 30)

	if len(g.History) != constants.MaxHistoryEntries {
		t.Fatalf("len(History) = %d after 31st entry, want %d", len(g.History), constants.MaxHistoryEntries)
	}
	if g.History[0].Date != "day-01" {
		t.Errorf("oldest entry = %q, want day-01", g.History[0].Date)
	}
	for i := 1; i < len(g.History); i++ {
		if g.History[i].Value <= g.History[i-1].Value {
			t.Fatalf("history out of order at %d: %v", i, g.History)
		}
	}
	if last := g.History[len(g.History)-1]; last.Date != "day-30" {
		t.Errorf("newest entry = %q, want day-30", last.Date)
	}
}

func TestApplyProgressMastery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g := Goal{Name: "Tennis", Current: 8, Target: 10, Level: 1}

	p := g.ApplyProgress(10, now)
	if !p.LeveledUp {
		t.Fatal("expected level-up when crossing the target")
	}
	if g.Level != 2 {
		t.Errorf("Level = %d, want 2", g.Level)
	}
	if g.Target != 15 {
		t.Errorf("Target = %v, want 15", g.Target)
	}
	if len(g.History) != 1 {
		t.Errorf("len(History) = %d, want 1", len(g.History))
	}

	p = g.ApplyProgress(12, now)
	if p.LeveledUp {
		t.Error("unexpected second level-up below the new target")
	}
	if g.Level != 2 {
		t.Errorf("Level = %d after second update, want 2", g.Level)
	}
}

func TestApplyProgressAlreadyMastered(t *testing.T) {
	g := Goal{Name: "Row", Current: 12, Target: 10, Level: 3}
	p := g.ApplyProgress(13, time.Now())
	if p.LeveledUp {
		t.Error("a goal that was already mastered must not level up again")
	}
	if g.Level != 3 || g.Target != 10 {
		t.Errorf("goal changed to level %d target %v", g.Level, g.Target)
	}
}

func TestApplyProgressRounding(t *testing.T) {
	g := Goal{Name: "Squash", Current: 2, Target: 3, Level: 1}
	g.ApplyProgress(3, time.Now())
	// 3 * 1.5 = 4.5 rounds half away from zero
	if g.Target != 5 {
		t.Errorf("Target = %v, want 5", g.Target)
	}
}

func TestApplyProgressUnchanged(t *testing.T) {
	g := Goal{Name: "Skierg", Current: 4, Target: 10, Level: 1}
	p := g.ApplyProgress(4, time.Now())
	if p.Changed {
		t.Error("expected no change")
	}
	if len(g.History) != 0 {
		t.Errorf("history recorded for an unchanged value: %v", g.History)
	}
}

func TestApplyProgressMilestones(t *testing.T) {
	tests := []struct {
		name      string
		from, to  float64
		milestone int
		bandUp    bool
	}{
		{"crosses 25", 20, 30, 25, true},
		{"crosses 75", 70, 80, 75, true},
		{"within band", 31, 33, 0, false},
		{"goes down", 50, 40, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Goal{Name: "Savings", Current: tt.from, Target: 100, Level: 1}
			p := g.ApplyProgress(tt.to, time.Now())
			if p.Milestone != tt.milestone {
				t.Errorf("Milestone = %d, want %d", p.Milestone, tt.milestone)
			}
			if p.BandUp != tt.bandUp {
				t.Errorf("BandUp = %v, want %v", p.BandUp, tt.bandUp)
			}
		})
	}
}

func TestProgressBand(t *testing.T) {
	tests := []struct {
		current, target float64
		want            int
	}{
		{0, 10, 1},
		{1, 10, 2},
		{5, 10, 6},
		{9.9, 10, 10},
		{3, 0, 1},
	}
	for _, tt := range tests {
		g := Goal{Current: tt.current, Target: tt.target}
		if got := g.ProgressBand(); got != tt.want {
			t.Errorf("ProgressBand(%v/%v) = %d, want %d", tt.current, tt.target, got, tt.want)
		}
	}
}

func TestPrediction(t *testing.T) {
	now := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	g := Goal{
		Name:    "ETF Savings",
		Current: 20,
		Target:  40,
		History: []HistoryEntry{
			{Date: "2026-01-01T00:00:00Z", Value: 10},
			{Date: "2026-01-11T00:00:00Z", Value: 20},
		},
	}

	got := g.Prediction(now)
	if got == nil {
		t.Fatal("Prediction() = nil, want a date")
	}
	want := now.AddDate(0, 0, 20)
	if !got.Equal(want) {
		t.Errorf("Prediction() = %v, want %v", got, want)
	}

	g.History = g.History[:1]
	if g.Prediction(now) != nil {
		t.Error("Prediction() with one sample should be nil")
	}
}

func TestValidate(t *testing.T) {
	long := make([]HistoryEntry, constants.MaxHistoryEntries+1)
	tests := []struct {
		name    string
		goal    Goal
		wantErr bool
	}{
		{"valid", Goal{Name: "French", Target: 10, Level: 1}, false},
		{"empty name", Goal{Name: "  ", Target: 10}, true},
		{"history too long", Goal{Name: "French", History: long}, true},
		{"bad type", Goal{Name: "French", Type: "hobby"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.goal.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSameAs(t *testing.T) {
	one, two := int64(1), int64(2)
	tests := []struct {
		name string
		a, b Goal
		want bool
	}{
		{"same id", Goal{ID: &one, Name: "a"}, Goal{ID: &one, Name: "b"}, true},
		{"different id", Goal{ID: &one, Name: "a"}, Goal{ID: &two, Name: "a"}, false},
		{"name match without id", Goal{Name: "a"}, Goal{ID: &two, Name: "a"}, true},
		{"name mismatch", Goal{Name: "a"}, Goal{Name: "b"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.SameAs(tt.b); got != tt.want {
				t.Errorf("SameAs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	id := int64(7)
	g := Goal{ID: &id, Name: "Tennis", History: []HistoryEntry{{Date: "d", Value: 1}}}
	c := g.Clone()
	*c.ID = 8
	c.History[0].Value = 99
	if *g.ID != 7 || g.History[0].Value != 1 {
		t.Errorf("Clone() shares memory with the original: %+v", g)
	}
}

func TestBuiltinTemplates(t *testing.T) {
	tpl, ok := BuiltinTemplate("financial_assassin")
	if !ok {
		t.Fatal("financial_assassin template missing")
	}
	set := tpl.GoalSet()
	if len(set.Financial) != 3 || len(set.Skills) != 0 {
		t.Fatalf("GoalSet() = %d skills %d financial", len(set.Skills), len(set.Financial))
	}
	for _, g := range set.Financial {
		if g.Type != GoalTypeFinancial {
			t.Errorf("goal %q type = %q", g.Name, g.Type)
		}
	}

	if _, ok := BuiltinTemplate(DefaultTemplateID); !ok {
		t.Error("default template missing")
	}
	if got := len(BuiltinTemplates()); got != 7 {
		t.Errorf("len(BuiltinTemplates()) = %d, want 7", got)
	}
}
