package validation

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/models"
)

func TestValidateGoals_DuplicateNames(t *testing.T) {
	validator := New()

	set := models.GoalSet{
		Skills: []models.Goal{
			{Name: "Padel", Target: 10, Level: 1},
			{Name: "padel", Target: 10, Level: 1},
		},
		Financial: []models.Goal{
			{Name: "Padel", Target: 100, Level: 1}, // same name in the other partition is fine
		},
	}

	result := validator.ValidateGoals(set)

	count := 0
	for _, conflict := range result.Conflicts {
		if conflict.Type == ConflictDuplicateGoalName {
			count++
			if conflict.GoalType != models.GoalTypeSkill {
				t.Errorf("duplicate reported in %s partition", conflict.GoalType)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected 1 duplicate conflict, got %d: %s", count, result.FormatReport())
	}
}

func TestValidateGoals_Clean(t *testing.T) {
	validator := New()
	tpl, _ := models.BuiltinTemplate("racketmaster")

	result := validator.ValidateGoals(tpl.GoalSet())
	if result.HasConflicts() {
		t.Errorf("unexpected conflicts: %s", result.FormatReport())
	}
	if got := result.FormatReport(); got != "No conflicts detected." {
		t.Errorf("FormatReport() = %q", got)
	}
}

func TestValidateGoals_InvalidFields(t *testing.T) {
	validator := New()
	bad := "tomorrow"

	set := models.GoalSet{
		Skills: []models.Goal{
			{Name: "", Target: 10},
			{Name: "Row", Current: math.NaN(), Target: 10},
			{Name: "Skierg", Target: 10, Deadline: &bad},
			{Name: "Savings", Target: 10, Type: models.GoalTypeFinancial},
			{Name: "Tennis", Target: 10, History: make([]models.HistoryEntry, constants.MaxHistoryEntries+2)},
		},
	}

	result := validator.ValidateGoals(set)

	want := map[ConflictType]bool{
		ConflictEmptyName:       false,
		ConflictNonFiniteValue:  false,
		ConflictInvalidDeadline: false,
		ConflictWrongPartition:  false,
		ConflictHistoryOverflow: false,
	}
	for _, c := range result.Conflicts {
		want[c.Type] = true
	}
	for typ, found := range want {
		if !found {
			t.Errorf("expected %s conflict in report:\n%s", typ, result.FormatReport())
		}
	}
	if !strings.Contains(result.FormatReport(), "Skierg") {
		t.Error("report should name the goal with the bad deadline")
	}
}

func TestAutoFix(t *testing.T) {
	validator := New()
	bad := "31/12/2026"

	set := models.GoalSet{
		Skills: []models.Goal{
			{Name: "Savings", Target: 10, Type: models.GoalTypeFinancial},
			{Name: "Tennis", Target: 10, Deadline: &bad,
				History: make([]models.HistoryEntry, constants.MaxHistoryEntries+5)},
		},
	}

	fixed, actions := validator.AutoFix(set)

	if len(actions) != 3 {
		t.Errorf("len(actions) = %d, want 3", len(actions))
	}
	if len(fixed.Financial) != 1 || fixed.Financial[0].Name != "Savings" {
		t.Errorf("Savings not moved to financial: %+v", fixed)
	}
	if len(fixed.Skills) != 1 {
		t.Fatalf("len(Skills) = %d, want 1", len(fixed.Skills))
	}
	tennis := fixed.Skills[0]
	if tennis.Deadline != nil {
		t.Error("invalid deadline not cleared")
	}
	if len(tennis.History) != constants.MaxHistoryEntries {
		t.Errorf("len(History) = %d, want %d", len(tennis.History), constants.MaxHistoryEntries)
	}
	if set.Skills[1].Deadline == nil {
		t.Error("AutoFix must not mutate its input")
	}

	if result := validator.ValidateGoals(fixed); result.HasConflicts() {
		t.Errorf("fixed set still has conflicts: %s", result.FormatReport())
	}
}

func TestValidateGoalInput(t *testing.T) {
	tests := []struct {
		name    string
		in      GoalInput
		wantErr bool
	}{
		{"valid", GoalInput{Name: "French", Current: 1, Target: 10}, false},
		{"valid deadline", GoalInput{Name: "French", Target: 10, Deadline: "2026-12-31"}, false},
		{"empty name", GoalInput{Name: " ", Target: 10}, true},
		{"zero target", GoalInput{Name: "French", Target: 0}, true},
		{"negative current", GoalInput{Name: "French", Current: -1, Target: 10}, true},
		{"infinite target", GoalInput{Name: "French", Target: math.Inf(1)}, true},
		{"bad deadline", GoalInput{Name: "French", Target: 10, Deadline: "12/31/2026"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGoalInput(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateGoalInput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, pqerrors.ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		wantErr  bool
	}{
		{"valid", "alice", "hunter22x", false},
		{"short username", "al", "hunter22x", true},
		{"short password", "alice", "abc123", true},
		{"no digits", "alice", "abcdefghij", true},
		{"no letters", "alice", "1234567890", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUsername(tt.username)
			if err == nil {
				err = ValidatePassword(tt.password)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
