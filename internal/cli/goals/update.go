package goals

import (
	"fmt"
	"time"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/models"
)

type UpdateCmd struct {
	Type          string   `arg:"" help:"Goal type: skill or financial." enum:"skill,skills,financial,finance"`
	Goal          string   `arg:"" help:"Goal name, or #id."`
	Current       *float64 `arg:"" optional:"" help:"New current value."`
	Name          *string  `help:"Rename the goal."`
	Target        *float64 `help:"New target value."`
	Deadline      *string  `help:"New deadline (YYYY-MM-DD)." xor:"deadline"`
	ClearDeadline bool     `help:"Remove the deadline." xor:"deadline"`
}

func (c *UpdateCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	t, err := models.ParseGoalType(c.Type)
	if err != nil {
		return err
	}

	changes := editor.Changes{Name: c.Name, Current: c.Current, Target: c.Target, Deadline: c.Deadline}
	if c.ClearDeadline {
		empty := ""
		changes.Deadline = &empty
	}
	if changes == (editor.Changes{}) {
		return fmt.Errorf("nothing to update: pass a new value or one of --name, --target, --deadline")
	}

	out, err := ctx.Editor.Update(ctx.Context(), t, c.Goal, changes)
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.Out, "✓ Updated %q\n", out.Goal.Name)
	fmt.Fprintln(ctx.Out, "  "+cli.GoalLine(out.Goal, time.Now()))
	if msg := cli.Celebrate(out.Goal, out.Progress); msg != "" {
		fmt.Fprintln(ctx.Out, "  "+msg)
	}
	return nil
}
