package goals

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/models"
)

type DeleteCmd struct {
	Type string `arg:"" help:"Goal type: skill or financial." enum:"skill,skills,financial,finance"`
	Goal string `arg:"" help:"Goal name, or #id."`
	Yes  bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *DeleteCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	t, err := models.ParseGoalType(c.Type)
	if err != nil {
		return err
	}
	g, err := ctx.Editor.Resolve(t, c.Goal)
	if err != nil {
		return err
	}

	if !c.Yes {
		ok, err := cli.Confirm(fmt.Sprintf("Delete %s goal %q?", t, g.Name), "Its history will be lost.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Out, "Delete cancelled.")
			return nil
		}
	}

	deleted, err := ctx.Editor.Delete(ctx.Context(), t, c.Goal)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "✓ Deleted %q\n", deleted.Name)
	return nil
}
