package account

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
)

type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	username := ctx.Vault.GetUsername()
	if err := ctx.Auth.Logout(ctx.Context()); err != nil {
		return err
	}
	if username == "" {
		fmt.Fprintln(ctx.Out, "✓ Signed out")
		return nil
	}
	fmt.Fprintf(ctx.Out, "✓ Signed out %s. Goals stay on this device.\n", username)
	return nil
}
