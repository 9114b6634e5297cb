package syncs

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/sync"
)

type SyncNowCmd struct {
	Force bool `help:"Ignore the cooldown between syncs." default:"true" negatable:""`
}

func (c *SyncNowCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	res := ctx.Engine.Synchronize(ctx.Context(), c.Force)
	fmt.Fprintln(ctx.Out, cli.SyncLine(res))

	switch res.State() {
	case sync.StateSuccess, sync.StateQueued, sync.StateThrottled, sync.StateOffline:
		return nil
	case sync.StateUnauthenticated, sync.StateNoUsername:
		return fmt.Errorf("not signed in")
	default:
		return res.Err
	}
}

type SyncStatusCmd struct{}

func (c *SyncStatusCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	username := ctx.Vault.GetUsername()
	if username == "" {
		fmt.Fprintln(ctx.Out, "Not signed in.")
		return nil
	}

	online := ctx.Engine.Online(ctx.Context())
	conn := cli.Success.Render("online")
	if !online {
		conn = cli.Warning.Render("offline")
	}
	fmt.Fprintf(ctx.Out, "Server:      %s (%s)\n", ctx.Client.BaseURL(), conn)

	set, err := ctx.Store.GetGoals(username)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Local goals: %d skills, %d financial\n", len(set.Skills), len(set.Financial))

	last, ok, err := ctx.Store.LastSyncTime(username)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(ctx.Out, "Last sync:   never")
	} else {
		fmt.Fprintf(ctx.Out, "Last sync:   %s\n", cli.FormatTime(last))
	}

	pending, err := ctx.Store.PendingDeletes(username)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		fmt.Fprintf(ctx.Out, "Pending:     %d deletions waiting for the server\n", len(pending))
	}
	if ctx.Vault.NeedsRefresh() {
		fmt.Fprintln(ctx.Out, cli.Muted.Render("Token expires soon; it will be refreshed on the next sync."))
	}
	return nil
}
