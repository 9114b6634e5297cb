package system

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	m, ok := ctx.Store.Primary().(migrator)
	if !ok {
		return fmt.Errorf("the %s store has no schema to migrate", ctx.Store.BackendName())
	}
	if degraded, cause := ctx.Store.Degraded(); degraded {
		return fmt.Errorf("database unavailable: %v", cause)
	}

	runner, err := m.Migrations()
	if err != nil {
		return err
	}
	count, err := runner.ApplyMigrations(func(msg string) {
		fmt.Fprintln(ctx.Out, msg)
	})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if count == 0 {
		fmt.Fprintln(ctx.Out, "No migrations to apply. Database is up to date.")
	} else {
		fmt.Fprintf(ctx.Out, "\nSuccessfully applied %d migration(s).\n", count)
	}
	return nil
}
