package syncs

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/lockfile"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/scheduler"
)

type WatchCmd struct {
	Interval time.Duration `help:"Time between periodic syncs." default:"5m"`
	Poll     time.Duration `help:"How often to check connectivity." default:"30s"`
}

func (c *WatchCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(filepath.Join(ctx.ConfigDir, constants.WatchLockfileName))
	if err != nil {
		if errors.Is(err, lockfile.ErrLocked) {
			return fmt.Errorf("%w; stop it first or send it SIGUSR1 to sync now", err)
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("Failed to release watch lock", "error", err)
		}
	}()

	s := scheduler.New(ctx.Engine,
		scheduler.WithIntervals(constants.AutoSyncStartDelay, c.Interval, c.Poll),
		scheduler.OnEvent(func(ev scheduler.Event) {
			fmt.Fprintf(ctx.Out, "%s [%s] %s\n", time.Now().Format("15:04:05"), ev.Trigger, cli.SyncLine(ev.Result))
		}),
	)

	nudges := make(chan os.Signal, 1)
	if len(nudgeSignals) > 0 {
		signal.Notify(nudges, nudgeSignals...)
	}
	defer func() {
		signal.Stop(nudges)
		close(nudges)
	}()
	go func() {
		for range nudges {
			s.Nudge()
		}
	}()

	fmt.Fprintf(ctx.Out, "Watching for changes (pid %d). Press Ctrl+C to stop.\n", os.Getpid())
	return s.Run(ctx.Context())
}
