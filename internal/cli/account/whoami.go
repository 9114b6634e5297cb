package account

import (
	"fmt"
	"strings"

	"github.com/julianstephens/progressquest/internal/cli"
)

type WhoamiCmd struct{}

func (c *WhoamiCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	id, err := ctx.Auth.Whoami()
	if err != nil {
		return err
	}

	if id.Username == "" {
		fmt.Fprintln(ctx.Out, "Not signed in.")
	} else {
		status := cli.Success.Render("signed in")
		if !id.Authenticated {
			status = cli.Warning.Render("signed out")
		}
		fmt.Fprintf(ctx.Out, "User:       %s (%s)\n", id.Username, status)
		if !id.Expiry.IsZero() {
			fmt.Fprintf(ctx.Out, "Token:      expires %s\n", cli.FormatTime(id.Expiry))
		}
		fmt.Fprintf(ctx.Out, "Last sync:  %s\n", cli.FormatTime(id.LastSync))
		if id.Profile != nil {
			fmt.Fprintf(ctx.Out, "Last login: %s\n", cli.FormatTime(id.Profile.LastLogin))
			if id.Profile.Template != "" {
				fmt.Fprintf(ctx.Out, "Template:   %s\n", id.Profile.Template)
			}
		}
	}
	fmt.Fprintf(ctx.Out, "Store:      %s\n", ctx.Store.BackendName())
	if len(id.KnownUsers) > 0 {
		fmt.Fprintf(ctx.Out, "Known users on this device: %s\n", strings.Join(id.KnownUsers, ", "))
	}
	return nil
}
