package system

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/scheduler"
	"github.com/julianstephens/progressquest/internal/tui"
)

type TuiCmd struct{}

func (c *TuiCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	ctx.PerformAutomaticBackup()

	// Scheduled syncs run for as long as the dashboard is open.
	runCtx, cancel := context.WithCancel(ctx.Context())
	defer cancel()
	model := tui.NewModel(ctx.Engine, ctx.Editor, ctx.Vault.GetUsername()).WithContext(runCtx)
	go func() {
		_ = scheduler.New(ctx.Engine).Run(runCtx)
	}()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(runCtx))
	_, err := p.Run()
	return err
}
