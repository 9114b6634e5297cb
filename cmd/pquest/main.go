package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/cli/account"
	"github.com/julianstephens/progressquest/internal/cli/backups"
	"github.com/julianstephens/progressquest/internal/cli/goals"
	"github.com/julianstephens/progressquest/internal/cli/syncs"
	"github.com/julianstephens/progressquest/internal/cli/system"
	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
)

var CLI struct {
	Version kong.VersionFlag
	Config  kong.ConfigFlag `help:"Load flag defaults from a JSON file."`
	Server  string          `help:"Goal service URL." env:"PQUEST_SERVER" default:"${server}"`
	Store   string          `help:"SQLite path or PostgreSQL connection string. Credentials must NOT be embedded; use the OS keyring or .pgpass instead. Defaults to the keyring connection string, then ${store}." env:"PQUEST_STORE"`
	Debug   bool            `help:"Log debug output to stderr." env:"PQUEST_DEBUG"`
	Offline bool            `help:"Never contact the server; changes stay local." env:"PQUEST_OFFLINE"`

	Tui       system.TuiCmd        `cmd:"" help:"Launch the interactive dashboard." default:"1"`
	Login     account.LoginCmd     `cmd:"" help:"Sign in and download your goals."`
	Register  account.RegisterCmd  `cmd:"" help:"Create an account from a starter template."`
	Logout    account.LogoutCmd    `cmd:"" help:"Sign out. Goals stay on this device."`
	Whoami    account.WhoamiCmd    `cmd:"" help:"Show the signed-in user."`
	Templates account.TemplatesCmd `cmd:"" help:"List starter templates."`
	Goals     struct {
		List   goals.ListCmd   `cmd:"" help:"List goals." default:"1"`
		Add    goals.AddCmd    `cmd:"" help:"Add a goal."`
		Update goals.UpdateCmd `cmd:"" help:"Record progress or edit a goal."`
		Delete goals.DeleteCmd `cmd:"" help:"Delete a goal."`
	} `cmd:"" help:"Manage goals."`
	Sync struct {
		Now    syncs.SyncNowCmd    `cmd:"" help:"Sync with the server now." default:"1"`
		Status syncs.SyncStatusCmd `cmd:"" help:"Show sync state."`
	} `cmd:"" help:"Synchronize goals with the server."`
	Watch  syncs.WatchCmd `cmd:"" help:"Keep syncing in the background until interrupted."`
	Backup struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Init     system.InitCmd     `cmd:"" help:"Initialize local storage."`
	Migrate  system.MigrateCmd  `cmd:"" help:"Run database migrations."`
	Doctor   system.DoctorCmd   `cmd:"" help:"Run health checks and diagnostics."`
	Validate system.ValidateCmd `cmd:"" help:"Check stored goals for conflicts."`
	Diag     system.DebugCmd    `cmd:"" name:"debug" help:"Debug commands for troubleshooting."`
	Keyring  struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string with the password masked."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check OS keyring availability." default:"1"`
	} `cmd:"" help:"Manage credentials in the OS keyring."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.BinaryName),
		kong.Description("Offline-first goal tracker: level up skills and savings"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Configuration(kong.JSON, constants.DefaultConfigDir+"/config.json"),
		kong.Vars{
			"version": constants.Version,
			"server":  constants.DefaultServerURL,
			"store":   constants.DefaultStorePath,
		},
	)

	configDir := cli.ExpandHome(constants.DefaultConfigDir)
	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: configDir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCtx, err := cli.Open(runCtx, cli.Options{
		ServerURL: CLI.Server,
		Location:  CLI.Store,
		ConfigDir: configDir,
		Offline:   CLI.Offline,
	})
	if err != nil {
		pqerrors.Fatal(err)
	}

	err = ctx.Run(appCtx)
	if cerr := appCtx.Close(); cerr != nil {
		logger.Warn("Failed to close local store", "error", cerr)
	}
	stop()
	pqerrors.Fatal(err)
}
