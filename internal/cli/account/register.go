package account

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/progressquest/internal/api"
	"github.com/julianstephens/progressquest/internal/cli"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/validation"
)

type RegisterCmd struct {
	Username string `arg:"" optional:"" help:"Username for the new account."`
	Password string `help:"Password (8+ characters, letters and numbers)." env:"PQUEST_PASSWORD"`
	Template string `help:"Starter template id. Prompted for when omitted."`
}

func (c *RegisterCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	if ctx.Offline {
		return fmt.Errorf("%w: cannot register while offline", pqerrors.ErrNetworkUnavailable)
	}

	if c.Username == "" || c.Password == "" || c.Template == "" {
		templates, _ := ctx.Auth.Templates(ctx.Context())
		if err := c.form(templates).Run(); err != nil {
			return err
		}
	}

	res, err := ctx.Auth.Register(ctx.Context(), c.Username, c.Password, c.Template)
	if err != nil {
		if errors.Is(err, api.ErrUsernameTaken) {
			return fmt.Errorf("username %q is already taken", c.Username)
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	printSignIn(ctx, res)
	return nil
}

func (c *RegisterCmd) form(templates []models.Template) *huh.Form {
	options := make([]huh.Option[string], 0, len(templates))
	for _, t := range templates {
		label := t.Name
		if t.Description != "" {
			label += " - " + t.Description
		}
		options = append(options, huh.NewOption(label, t.ID))
	}
	if c.Template == "" {
		c.Template = models.DefaultTemplateID
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Create an account").
				Prompt("Username: ").
				Validate(validation.ValidateUsername).
				Value(&c.Username),
			huh.NewInput().
				Prompt("Password: ").
				EchoMode(huh.EchoModePassword).
				Validate(validation.ValidatePassword).
				Value(&c.Password),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Starting goals").
				Options(options...).
				Value(&c.Template),
		),
	)
}
