package system

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/vault"
)

type DebugCmd struct {
	DBPath      DebugDBPathCmd      `cmd:"" help:"Show the local store location."`
	DumpGoals   DebugDumpGoalsCmd   `cmd:"" help:"Dump the stored goals as JSON."`
	Diagnostics DebugDiagnosticsCmd `cmd:"" help:"Show recorded login failures."`
	Session     DebugSessionCmd     `cmd:"" help:"Show which credential scopes hold a session."`
}

func printJSON(ctx *cli.Context, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(ctx.Out, string(out))
	return nil
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	path := ctx.Location
	if p, ok := ctx.Store.Primary().(interface{ GetConfigPath() string }); ok {
		path = p.GetConfigPath()
	}
	return printJSON(ctx, map[string]string{
		"path":     path,
		"fallback": ctx.ConfigDir,
	})
}

type DebugDumpGoalsCmd struct {
	User string `help:"User whose goals to dump. Defaults to the signed-in user."`
}

func (cmd *DebugDumpGoalsCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	user := cmd.User
	if user == "" {
		user = ctx.Vault.GetUsername()
	}
	if user == "" {
		return fmt.Errorf("no user given and nobody is signed in")
	}
	set, err := ctx.Store.GetGoals(user)
	if err != nil {
		return fmt.Errorf("failed to get goals: %w", err)
	}
	return printJSON(ctx, set)
}

type DebugDiagnosticsCmd struct {
	User string `help:"Only show failures for this user."`
}

func (cmd *DebugDiagnosticsCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	failures, err := ctx.Store.Diagnostics(cmd.User)
	if err != nil {
		return fmt.Errorf("failed to read diagnostics: %w", err)
	}
	if len(failures) == 0 {
		fmt.Fprintln(ctx.Out, "No login failures recorded.")
		return nil
	}
	return printJSON(ctx, failures)
}

type DebugSessionCmd struct{}

type scopeState struct {
	Scope        string `json:"scope"`
	Username     string `json:"username,omitempty"`
	AccessToken  bool   `json:"access_token"`
	RefreshToken bool   `json:"refresh_token"`
	Error        string `json:"error,omitempty"`
}

func (cmd *DebugSessionCmd) Run(ctx *cli.Context) error {
	states := make([]scopeState, 0, len(ctx.Vault.Scopes()))
	for _, s := range ctx.Vault.Scopes() {
		st := scopeState{Scope: s.Name()}
		if u, err := s.Get(vault.KeyUsername); err == nil {
			st.Username = u
		} else if !errors.Is(err, vault.ErrNotFound) {
			st.Error = err.Error()
		}
		if v, err := s.Get(vault.KeyAccessToken); err == nil && v != "" {
			st.AccessToken = true
		}
		if v, err := s.Get(vault.KeyRefreshToken); err == nil && v != "" {
			st.RefreshToken = true
		}
		states = append(states, st)
	}
	return printJSON(ctx, states)
}
