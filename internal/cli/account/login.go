package account

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/auth"
	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
)

type LoginCmd struct {
	Username string `arg:"" optional:"" help:"Account username. Prompted for when omitted."`
	Password string `help:"Account password. Prompted for when omitted." env:"PQUEST_PASSWORD"`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	if ctx.Offline {
		return fmt.Errorf("%w: cannot sign in while offline", pqerrors.ErrNetworkUnavailable)
	}

	if c.Username == "" {
		c.Username = ctx.Vault.GetUsername()
	}
	if c.Username == "" || c.Password == "" {
		if err := credentialsForm(&c.Username, &c.Password, "Sign in to "+constants.AppName).Run(); err != nil {
			return err
		}
	}

	res, err := ctx.Auth.Login(ctx.Context(), c.Username, c.Password)
	if err != nil {
		if n := ctx.Auth.FailedAttempts(c.Username); n >= constants.LoginFailureDiagnosticAt {
			fmt.Fprintln(ctx.Out, cli.Muted.Render(fmt.Sprintf("%d failed attempts; details saved for 'pquest debug diagnostics'", n)))
		}
		if errors.Is(err, pqerrors.ErrUnauthorized) {
			return errors.New("invalid username or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	printSignIn(ctx, res)
	return nil
}

func credentialsForm(username, password *string, title string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Prompt("Username: ").
				Value(username),
			huh.NewInput().
				Prompt("Password: ").
				EchoMode(huh.EchoModePassword).
				Value(password),
		),
	)
}

func printSignIn(ctx *cli.Context, res auth.SignIn) {
	fmt.Fprintln(ctx.Out, cli.Success.Render("✓ Signed in as "+res.Username))
	if res.Message != "" {
		fmt.Fprintln(ctx.Out, "  "+res.Message)
	}
	switch {
	case res.Sync != nil:
		fmt.Fprintln(ctx.Out, "  "+cli.SyncLine(*res.Sync))
	case res.Pulled > 0:
		fmt.Fprintf(ctx.Out, "  Downloaded %d goals\n", res.Pulled)
	}
}
