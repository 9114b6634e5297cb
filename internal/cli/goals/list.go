package goals

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/models"
)

type ListCmd struct {
	Type string `help:"Only show one goal type (skill or financial)."`
	JSON bool   `help:"Print goals as JSON."`
}

func (c *ListCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	set, err := ctx.Engine.LocalGoals()
	if err != nil {
		return err
	}

	types := []models.GoalType{models.GoalTypeSkill, models.GoalTypeFinancial}
	if c.Type != "" {
		t, err := models.ParseGoalType(c.Type)
		if err != nil {
			return err
		}
		types = []models.GoalType{t}
		set = models.GoalSet{}.With(t, set.Of(t))
	}

	if c.JSON {
		out, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal goals: %w", err)
		}
		fmt.Fprintln(ctx.Out, string(out))
		return nil
	}

	now := time.Now()
	for i, t := range types {
		if i > 0 {
			fmt.Fprintln(ctx.Out)
		}
		goals := set.Of(t)
		fmt.Fprintln(ctx.Out, cli.Heading.Render(heading(t, len(goals))))
		if len(goals) == 0 {
			fmt.Fprintln(ctx.Out, cli.Muted.Render("  No goals yet. Add one with 'pquest goals add "+string(t)+" <name>'."))
			continue
		}
		for _, g := range goals {
			fmt.Fprintln(ctx.Out, "  "+cli.GoalLine(g, now))
		}
	}
	return nil
}

func heading(t models.GoalType, n int) string {
	if t == models.GoalTypeFinancial {
		return fmt.Sprintf("Financial goals (%d)", n)
	}
	return fmt.Sprintf("Skills (%d)", n)
}
