package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/storage"
)

type InitCmd struct {
	Force  bool   `help:"Delete the existing SQLite database before initializing."`
	Source string `help:"Store to copy data from: a SQLite path, a PostgreSQL connection string or a JSON fallback file."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Load(); err != nil {
		return err
	}
	if degraded, cause := ctx.Store.Degraded(); degraded {
		return fmt.Errorf("failed to initialize %s: %v", ctx.Location, cause)
	}
	where := ctx.Location
	if p, ok := ctx.Store.Primary().(interface{ GetConfigPath() string }); ok {
		where = p.GetConfigPath()
	}
	fmt.Fprintf(ctx.Out, "Initialized %s storage at: %s\n", ctx.Store.BackendName(), where)

	if c.Source == "" {
		return nil
	}
	fmt.Fprintf(ctx.Out, "Copying data from: %s\n", c.Source)
	src, err := sourceBackend(cli.ExpandHome(c.Source))
	if err != nil {
		return err
	}
	if err := src.Open(); err != nil {
		return fmt.Errorf("failed to open source store: %w", err)
	}
	defer src.Close()

	counts, err := storage.CopyAll(src, ctx.Store.Primary())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	for _, coll := range storage.Collections {
		fmt.Fprintf(ctx.Out, "  Copied %d %s records\n", counts[coll], coll)
	}
	fmt.Fprintln(ctx.Out, "Migration completed successfully!")
	return nil
}

func (c *InitCmd) reset(ctx *cli.Context) error {
	if ctx.Backups == nil {
		return fmt.Errorf("--force only applies to SQLite stores")
	}
	dbPath := ctx.Location
	if abs, err := filepath.Abs(dbPath); err == nil {
		dbPath = abs
	}
	if c.Source != "" {
		if abs, err := filepath.Abs(cli.ExpandHome(c.Source)); err == nil && abs == dbPath {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	if err := os.Remove(dbPath); err != nil {
		return fmt.Errorf("failed to delete existing database: %w", err)
	}
	fmt.Fprintf(ctx.Out, "Deleted existing database at: %s\n", dbPath)
	return nil
}

func sourceBackend(location string) (storage.Backend, error) {
	if strings.HasSuffix(strings.ToLower(location), ".json") {
		return storage.NewJSONStore(location), nil
	}
	return cli.NewBackend(location)
}
