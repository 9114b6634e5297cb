package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/models"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictDuplicateGoalName ConflictType = "duplicate_goal_name"
	ConflictEmptyName         ConflictType = "empty_name"
	ConflictNonFiniteValue    ConflictType = "non_finite_value"
	ConflictHistoryOverflow   ConflictType = "history_overflow"
	ConflictInvalidDeadline   ConflictType = "invalid_deadline"
	ConflictWrongPartition    ConflictType = "wrong_partition"
)

// Conflict represents a problem detected in a stored goal set
type Conflict struct {
	Type        ConflictType
	Description string
	GoalType    models.GoalType
	Items       []string // Goal names involved
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// FixAction represents an action taken during auto-fix
type FixAction struct {
	Action         string
	SourceConflict Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, conflict := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", conflict.Description)
	}
	return b.String()
}

// Validator checks goal sets and user input
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// ValidateGoals checks both partitions of a goal set.
func (v *Validator) ValidateGoals(set models.GoalSet) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}
	v.validatePartition(&result, models.GoalTypeSkill, set.Skills)
	v.validatePartition(&result, models.GoalTypeFinancial, set.Financial)
	return result
}

func (v *Validator) validatePartition(result *ValidationResult, goalType models.GoalType, goals []models.Goal) {
	names := make(map[string]int)
	for _, g := range goals {
		if strings.TrimSpace(g.Name) == "" {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictEmptyName,
				Description: fmt.Sprintf("A %s goal has an empty name", goalType),
				GoalType:    goalType,
			})
			continue
		}
		names[strings.ToLower(g.Name)]++

		if g.Type != "" && g.Type != goalType {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictWrongPartition,
				Description: fmt.Sprintf("Goal \"%s\" is typed %s but stored with %s goals", g.Name, g.Type, goalType),
				GoalType:    goalType,
				Items:       []string{g.Name},
			})
		}

		if !finite(g.Current) || !finite(g.Target) {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictNonFiniteValue,
				Description: fmt.Sprintf("Goal \"%s\" has a non-finite current or target", g.Name),
				GoalType:    goalType,
				Items:       []string{g.Name},
			})
		}

		if len(g.History) > constants.MaxHistoryEntries {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type: ConflictHistoryOverflow,
				Description: fmt.Sprintf("Goal \"%s\" has %d history entries (max %d)",
					g.Name, len(g.History), constants.MaxHistoryEntries),
				GoalType: goalType,
				Items:    []string{g.Name},
			})
		}

		if g.Deadline != nil && ValidateDeadline(*g.Deadline) != nil {
			result.Conflicts = append(result.Conflicts, Conflict{
				Type:        ConflictInvalidDeadline,
				Description: fmt.Sprintf("Goal \"%s\" has invalid deadline: %s", g.Name, *g.Deadline),
				GoalType:    goalType,
				Items:       []string{g.Name},
			})
		}
	}

	dupes := make([]string, 0)
	for name, n := range names {
		if n > 1 {
			dupes = append(dupes, name)
		}
	}
	sort.Strings(dupes)
	for _, name := range dupes {
		result.Conflicts = append(result.Conflicts, Conflict{
			Type:        ConflictDuplicateGoalName,
			Description: fmt.Sprintf("Duplicate %s goal name: \"%s\"", goalType, name),
			GoalType:    goalType,
			Items:       []string{name},
		})
	}
}

// AutoFix repairs what can be repaired without guessing: it trims overlong histories,
// drops unparseable deadlines and moves goals into the partition matching their type.
// Duplicates and empty names are left for the user.
func (v *Validator) AutoFix(set models.GoalSet) (models.GoalSet, []FixAction) {
	var actions []FixAction
	fixed := models.GoalSet{Skills: []models.Goal{}, Financial: []models.Goal{}}

	place := func(partition models.GoalType, g models.Goal) {
		if len(g.History) > constants.MaxHistoryEntries {
			actions = append(actions, FixAction{
				Action: fmt.Sprintf("Trimmed history of \"%s\" to %d entries", g.Name, constants.MaxHistoryEntries),
				SourceConflict: Conflict{
					Type: ConflictHistoryOverflow, GoalType: partition, Items: []string{g.Name},
				},
			})
			g.History = g.History[len(g.History)-constants.MaxHistoryEntries:]
		}
		if g.Deadline != nil && ValidateDeadline(*g.Deadline) != nil {
			actions = append(actions, FixAction{
				Action: fmt.Sprintf("Cleared invalid deadline %q on \"%s\"", *g.Deadline, g.Name),
				SourceConflict: Conflict{
					Type: ConflictInvalidDeadline, GoalType: partition, Items: []string{g.Name},
				},
			})
			g.Deadline = nil
		}
		target := partition
		if g.Type != "" && g.Type != partition {
			actions = append(actions, FixAction{
				Action: fmt.Sprintf("Moved \"%s\" to %s goals", g.Name, g.Type),
				SourceConflict: Conflict{
					Type: ConflictWrongPartition, GoalType: partition, Items: []string{g.Name},
				},
			})
			target = g.Type
		}
		g.Type = target
		if target == models.GoalTypeFinancial {
			fixed.Financial = append(fixed.Financial, g)
		} else {
			fixed.Skills = append(fixed.Skills, g)
		}
	}

	for _, g := range set.Skills {
		place(models.GoalTypeSkill, g.Clone())
	}
	for _, g := range set.Financial {
		place(models.GoalTypeFinancial, g.Clone())
	}
	return fixed, actions
}

// GoalInput is raw goal data entered by a user.
type GoalInput struct {
	Name     string
	Current  float64
	Target   float64
	Deadline string
}

// ValidateGoalInput rejects malformed input before anything is persisted.
func ValidateGoalInput(in GoalInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: goal name cannot be empty", pqerrors.ErrValidation)
	}
	if !finite(in.Current) || !finite(in.Target) {
		return fmt.Errorf("%w: current and target must be numbers", pqerrors.ErrValidation)
	}
	if in.Current < 0 {
		return fmt.Errorf("%w: current cannot be negative", pqerrors.ErrValidation)
	}
	if in.Target <= 0 {
		return fmt.Errorf("%w: target must be greater than zero", pqerrors.ErrValidation)
	}
	if in.Deadline != "" {
		if err := ValidateDeadline(in.Deadline); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDeadline accepts YYYY-MM-DD dates.
func ValidateDeadline(s string) error {
	if _, err := time.Parse(constants.DateFormat, s); err != nil {
		return fmt.Errorf("%w: invalid deadline %q (expected YYYY-MM-DD)", pqerrors.ErrValidation, s)
	}
	return nil
}

// ValidateUsername requires at least three characters.
func ValidateUsername(username string) error {
	if len(strings.TrimSpace(username)) < 3 {
		return fmt.Errorf("%w: username must be at least 3 characters", pqerrors.ErrValidation)
	}
	return nil
}

// ValidatePassword requires eight characters with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", pqerrors.ErrValidation)
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: password must contain both letters and numbers", pqerrors.ErrValidation)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
