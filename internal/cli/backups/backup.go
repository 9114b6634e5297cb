package backups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/progressquest/internal/backup"
	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/lockfile"
)

var errNoBackups = errors.New("backups are only available for the SQLite store")

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *cli.Context) error {
	if ctx.Backups == nil {
		return errNoBackups
	}
	path, err := ctx.Backups.Create()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	fmt.Fprintf(ctx.Out, "✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *cli.Context) error {
	if ctx.Backups == nil {
		return errNoBackups
	}
	list, err := ctx.Backups.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintln(ctx.Out, "No backups found.")
		fmt.Fprintf(ctx.Out, "Backups are stored in: %s\n", ctx.Backups.Dir())
		return nil
	}

	fmt.Fprintf(ctx.Out, "Available backups (%d total, keeping most recent %d):\n\n", len(list), constants.MaxBackups)
	for _, b := range list {
		fmt.Fprintf(ctx.Out, "  %s  %s  (%.1f KB)\n",
			b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0)
	}
	fmt.Fprintf(ctx.Out, "\nBackup directory: %s\n", ctx.Backups.Dir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Skip the confirmation prompt."`
}

func (c *BackupRestoreCmd) Run(ctx *cli.Context) error {
	if ctx.Backups == nil {
		return errNoBackups
	}
	path, err := resolveBackup(ctx.Backups, c.BackupFile)
	if err != nil {
		return err
	}

	if h, live, err := lockfile.Read(filepath.Join(ctx.ConfigDir, constants.WatchLockfileName)); err == nil && live {
		return fmt.Errorf("a watcher is running (pid %d); stop it before restoring", h.PID)
	}

	if !c.Yes {
		ok, err := cli.Confirm("Replace the local database with this backup?",
			fmt.Sprintf("Restore from %s. The current database is backed up first. Unsynced changes made since the backup only survive in that copy.", path))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(ctx.Out, "Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database connection: %v\n", err)
	}

	previous, err := ctx.Backups.Restore(path)
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Fprintln(ctx.Out, "✓ Database restored successfully!")
	if previous != "" {
		fmt.Fprintf(ctx.Out, "  Previous database saved as %s\n", filepath.Base(previous))
	}
	fmt.Fprintln(ctx.Out, "  The next sync replaces restored goals with the server's copy.")
	return nil
}

// resolveBackup accepts an absolute path, a path relative to the working directory, or a
// file name inside the backup directory.
func resolveBackup(mgr *backup.Manager, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("backup file not found: %s", name)
		}
		return name, nil
	}
	if _, err := os.Stat(name); err == nil {
		abs, err := filepath.Abs(name)
		if err != nil {
			return "", fmt.Errorf("failed to resolve backup path: %w", err)
		}
		return abs, nil
	}
	candidate := filepath.Join(mgr.Dir(), name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate, nil
	}
	return "", fmt.Errorf("backup file not found: tried current directory and %s", mgr.Dir())
}
