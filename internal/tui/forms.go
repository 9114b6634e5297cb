package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/validation"
)

func newGoalFormModel(g *models.Goal) *GoalFormModel {
	if g == nil {
		return &GoalFormModel{Current: "0"}
	}
	fm := &GoalFormModel{
		Name:    g.Name,
		Current: formatAmount(g.Current),
		Target:  formatAmount(g.Target),
	}
	if g.Deadline != nil {
		fm.Deadline = *g.Deadline
	}
	return fm
}

func NewGoalForm(fm *GoalFormModel, t models.GoalType, adding bool) *huh.Form {
	title := fmt.Sprintf("Update %s goal", t)
	if adding {
		title = fmt.Sprintf("New %s goal", t)
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Prompt("Name: ").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}).
				Value(&fm.Name),
			huh.NewInput().
				Prompt("Current: ").
				Validate(validAmount).
				Value(&fm.Current),
			huh.NewInput().
				Prompt("Target: ").
				Validate(validAmount).
				Value(&fm.Target),
			huh.NewInput().
				Prompt("Deadline (YYYY-MM-DD, blank for none): ").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return nil
					}
					return validation.ValidateDeadline(strings.TrimSpace(s))
				}).
				Value(&fm.Deadline),
		),
	).WithShowHelp(true)
}

func (fm *GoalFormModel) input() (validation.GoalInput, error) {
	current, err := parseAmount(fm.Current)
	if err != nil {
		return validation.GoalInput{}, err
	}
	target, err := parseAmount(fm.Target)
	if err != nil {
		return validation.GoalInput{}, err
	}
	return validation.GoalInput{
		Name:     strings.TrimSpace(fm.Name),
		Current:  current,
		Target:   target,
		Deadline: strings.TrimSpace(fm.Deadline),
	}, nil
}

// changes returns only the fields that differ from g.
func (fm *GoalFormModel) changes(g models.Goal) (editor.Changes, error) {
	in, err := fm.input()
	if err != nil {
		return editor.Changes{}, err
	}
	var c editor.Changes
	if in.Name != g.Name {
		c.Name = &in.Name
	}
	if in.Current != g.Current {
		c.Current = &in.Current
	}
	if in.Target != g.Target {
		c.Target = &in.Target
	}
	old := ""
	if g.Deadline != nil {
		old = *g.Deadline
	}
	if in.Deadline != old {
		c.Deadline = &in.Deadline
	}
	return c, nil
}

func validAmount(s string) error {
	_, err := parseAmount(s)
	return err
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
