package account

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
)

type TemplatesCmd struct{}

func (c *TemplatesCmd) Run(ctx *cli.Context) error {
	templates, remote := ctx.Auth.Templates(ctx.Context())
	if !remote {
		fmt.Fprintln(ctx.Out, cli.Muted.Render("Server unavailable; showing built-in templates."))
	}
	for _, t := range templates {
		fmt.Fprintf(ctx.Out, "%s  %s\n", cli.Heading.Render(t.ID), t.Name)
		if t.Description != "" {
			fmt.Fprintf(ctx.Out, "    %s\n", t.Description)
		}
		fmt.Fprintf(ctx.Out, "    %d skills, %d financial goals\n", len(t.Skills), len(t.Financial))
	}
	return nil
}
