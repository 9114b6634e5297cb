// Package clitest builds command contexts backed by temporary stores for tests.
package clitest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/progressquest/internal/api"
	"github.com/julianstephens/progressquest/internal/auth"
	"github.com/julianstephens/progressquest/internal/backup"
	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/internal/storage/sqlite"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/validation"
	"github.com/julianstephens/progressquest/internal/vault"
)

// Options tune the context New builds.
type Options struct {
	// Handler serves the goal API. Nil points the client at a closed port.
	Handler http.Handler
	Offline bool
}

// New returns a loaded context on a temporary SQLite store with a file-only vault, and the
// buffer commands print to.
func New(t *testing.T, opts Options) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "progressquest.db")

	serverURL := "http://127.0.0.1:1"
	if opts.Handler != nil {
		srv := httptest.NewServer(opts.Handler)
		t.Cleanup(srv.Close)
		serverURL = srv.URL
	}
	client, err := api.New(serverURL)
	if err != nil {
		t.Fatalf("api.New failed: %v", err)
	}

	store := storage.New(sqlite.NewStore(dbPath), storage.NewJSONStore(filepath.Join(dir, "fallback.json")))
	v := vault.New(vault.NewSessionScope(filepath.Join(dir, "session.json")))
	backups := backup.NewManager(dbPath)
	engine := sync.New(store, v, client,
		sync.WithConnectivity(sync.Static(!opts.Offline)),
		sync.WithSnapshot(backups.SnapshotBeforeSync),
		sync.WithTiming(0, time.Hour, time.Hour),
	)

	out := &bytes.Buffer{}
	ctx := &cli.Context{
		Store:     store,
		Vault:     v,
		Client:    client,
		Engine:    engine,
		Auth:      auth.New(client, v, store, engine),
		Editor:    editor.New(engine),
		Backups:   backups,
		Offline:   opts.Offline,
		Out:       out,
		Location:  dbPath,
		ConfigDir: dir,
	}
	if err := ctx.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, out
}

// SignIn stores tokens for username without talking to a server.
func SignIn(t *testing.T, ctx *cli.Context, username string) {
	t.Helper()
	if err := ctx.Vault.StoreTokens(models.Tokens{AccessToken: "token-" + username, RefreshToken: "refresh-" + username}); err != nil {
		t.Fatalf("StoreTokens failed: %v", err)
	}
	if err := ctx.Vault.StoreUser(username); err != nil {
		t.Fatalf("StoreUser failed: %v", err)
	}
}

// AddGoal saves a goal for the signed-in user through the editor.
func AddGoal(t *testing.T, ctx *cli.Context, typ models.GoalType, name string, current, target float64) models.Goal {
	t.Helper()
	out, err := ctx.Editor.Add(context.Background(), typ, validation.GoalInput{Name: name, Current: current, Target: target})
	if err != nil {
		t.Fatalf("Add(%q) failed: %v", name, err)
	}
	return out.Goal
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
