package system

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/keyring"
	"github.com/julianstephens/progressquest/internal/migration"
	"github.com/julianstephens/progressquest/internal/validation"
)

type DoctorCmd struct{}

// migrator is implemented by the SQL backends.
type migrator interface {
	Migrations() (*migration.Runner, error)
}

type checkStatus int

const (
	checkOK checkStatus = iota
	checkFail
	checkWarn
	checkSkip
)

func report(w io.Writer, name string, status checkStatus, detail string) {
	switch status {
	case checkOK:
		fmt.Fprintf(w, "✓ %s: OK\n", name)
	case checkFail:
		fmt.Fprintf(w, "❌ %s: FAIL\n", name)
	case checkWarn:
		fmt.Fprintf(w, "⚠ %s: WARNING\n", name)
	case checkSkip:
		fmt.Fprintf(w, "⊘ %s: SKIPPED (%s)\n", name, detail)
		return
	}
	if detail != "" {
		fmt.Fprintf(w, "   %s\n", detail)
	}
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	out := ctx.Out
	fmt.Fprintln(out, "Running diagnostics...")
	fmt.Fprintln(out)

	hasError := false
	fail := func(name string, err error) {
		report(out, name, checkFail, "Error: "+err.Error())
		hasError = true
	}

	storeReachable := false
	if err := checkStore(ctx); err != nil {
		fail("Local store reachable", err)
	} else {
		report(out, "Local store reachable", checkOK, "")
		storeReachable = true
	}

	if !storeReachable {
		report(out, "Schema version", checkSkip, "local store not reachable")
		report(out, "Migrations complete", checkSkip, "local store not reachable")
	} else if m, ok := ctx.Store.Primary().(migrator); !ok {
		report(out, "Schema version", checkSkip, "store has no schema")
		report(out, "Migrations complete", checkSkip, "store has no schema")
	} else {
		current, latest, err := schemaVersions(m)
		switch {
		case err != nil:
			fail("Schema version", err)
		case current > latest:
			fail("Schema version", fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest))
		default:
			report(out, "Schema version", checkOK, "")
		}
		if err == nil && current < latest {
			fail("Migrations complete", fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest))
		} else if err == nil {
			report(out, "Migrations complete", checkOK, "")
		}
	}

	if ctx.Backups == nil {
		report(out, "Backups present", checkSkip, "not a SQLite store")
	} else if list, err := ctx.Backups.List(); err != nil {
		report(out, "Backups present", checkWarn, "failed to list backups: "+err.Error())
	} else if len(list) == 0 {
		report(out, "Backups present", checkWarn, "no backups found - consider creating one with 'pquest backup create'")
	} else {
		report(out, "Backups present", checkOK, "")
	}

	if storeReachable {
		if err := checkGoals(ctx); err != nil {
			fail("Goal validation", err)
		} else {
			report(out, "Goal validation", checkOK, "")
		}
	} else {
		report(out, "Goal validation", checkSkip, "local store not reachable")
	}

	if keyring.IsAvailable() {
		report(out, "OS keyring", checkOK, "")
	} else {
		report(out, "OS keyring", checkWarn, "unavailable; sessions fall back to files in "+ctx.ConfigDir)
	}

	sess := ctx.Vault.Session()
	switch {
	case sess.Username == "":
		report(out, "Session", checkWarn, "not signed in - run 'pquest login'")
	case !sess.Authenticated():
		report(out, "Session", checkWarn, fmt.Sprintf("%s is signed out - run 'pquest login'", sess.Username))
	case ctx.Vault.NeedsRefresh():
		report(out, "Session", checkWarn, fmt.Sprintf("token for %s expires %s", sess.Username, cli.FormatTime(sess.Tokens.Expiry)))
	default:
		report(out, "Session", checkOK, "")
	}

	if ctx.Offline {
		report(out, "Server reachable", checkSkip, "offline mode")
	} else {
		probe, cancel := context.WithTimeout(ctx.Context(), constants.ConnectivityTimeout)
		online := ctx.Engine.Online(probe)
		cancel()
		if online {
			report(out, "Server reachable", checkOK, "")
		} else {
			report(out, "Server reachable", checkWarn, fmt.Sprintf("cannot reach %s; changes stay local until it is back", ctx.Client.BaseURL()))
		}
	}

	if err := checkClock(out); err != nil {
		fail("Clock/timezone", err)
	} else {
		report(out, "Clock/timezone", checkOK, "")
	}

	fmt.Fprintln(out)
	if hasError {
		fmt.Fprintln(out, "Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}
	fmt.Fprintln(out, "All diagnostics passed!")
	return nil
}

func checkStore(ctx *cli.Context) error {
	if err := ctx.Store.Open(); err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	if degraded, cause := ctx.Store.Degraded(); degraded {
		return fmt.Errorf("running on %s fallback: %v", ctx.Store.BackendName(), cause)
	}
	return nil
}

func schemaVersions(m migrator) (current, latest int, err error) {
	runner, err := m.Migrations()
	if err != nil {
		return 0, 0, err
	}
	if current, err = runner.GetCurrentVersion(); err != nil {
		return 0, 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	if latest, err = runner.GetLatestVersion(); err != nil {
		return 0, 0, fmt.Errorf("failed to get latest schema version: %w", err)
	}
	return current, latest, nil
}

func checkGoals(ctx *cli.Context) error {
	username := ctx.Vault.GetUsername()
	if username == "" {
		return nil
	}
	set, err := ctx.Store.GetGoals(username)
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}
	result := validation.New().ValidateGoals(set)
	if result.HasConflicts() {
		return fmt.Errorf("%d conflicts found - run 'pquest validate' for details", len(result.Conflicts))
	}
	return nil
}

func checkClock(w io.Writer) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if _, offset := now.Zone(); offset == 0 && now.Location() == time.UTC {
		fmt.Fprintln(w, "   Note: timezone is UTC")
	}
	return nil
}
