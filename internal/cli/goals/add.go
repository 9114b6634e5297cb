package goals

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/validation"
)

type AddCmd struct {
	Type     string  `arg:"" help:"Goal type: skill or financial." enum:"skill,skills,financial,finance"`
	Name     string  `arg:"" optional:"" help:"Goal name. Prompted for when omitted."`
	Current  float64 `help:"Starting value." default:"0"`
	Target   float64 `help:"Target value."`
	Deadline string  `help:"Optional deadline (YYYY-MM-DD)."`
}

func (c *AddCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	t, err := models.ParseGoalType(c.Type)
	if err != nil {
		return err
	}

	in := validation.GoalInput{Name: c.Name, Current: c.Current, Target: c.Target, Deadline: c.Deadline}
	if strings.TrimSpace(c.Name) == "" || c.Target == 0 {
		if in, err = promptGoal(t, in); err != nil {
			return err
		}
	}

	out, err := ctx.Editor.Add(ctx.Context(), t, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "✓ Added %s goal %q\n", t, out.Goal.Name)
	fmt.Fprintln(ctx.Out, "  "+cli.GoalLine(out.Goal, time.Now()))
	return nil
}

func promptGoal(t models.GoalType, in validation.GoalInput) (validation.GoalInput, error) {
	current := formatNumber(in.Current)
	target := ""
	if in.Target != 0 {
		target = formatNumber(in.Target)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("New %s goal", t)).
				Prompt("Name: ").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					return nil
				}).
				Value(&in.Name),
			huh.NewInput().
				Prompt("Current: ").
				Validate(validNumber).
				Value(&current),
			huh.NewInput().
				Prompt("Target: ").
				Validate(validNumber).
				Value(&target),
			huh.NewInput().
				Prompt("Deadline (optional, YYYY-MM-DD): ").
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					return validation.ValidateDeadline(s)
				}).
				Value(&in.Deadline),
		),
	)
	if err := form.Run(); err != nil {
		return in, err
	}

	var err error
	if in.Current, err = parseNumber(current); err != nil {
		return in, err
	}
	if in.Target, err = parseNumber(target); err != nil {
		return in, err
	}
	return in, nil
}

func validNumber(s string) error {
	_, err := parseNumber(s)
	return err
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	return v, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
