package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/julianstephens/progressquest/internal/api"
	"github.com/julianstephens/progressquest/internal/auth"
	"github.com/julianstephens/progressquest/internal/backup"
	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/editor"
	"github.com/julianstephens/progressquest/internal/keyring"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/internal/storage/postgres"
	"github.com/julianstephens/progressquest/internal/storage/sqlite"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/vault"
)

const fallbackFileName = "fallback.json"

// Options are the global flags every command shares.
type Options struct {
	ServerURL string
	Location  string
	ConfigDir string
	Offline   bool
}

type Context struct {
	Store   *storage.Store
	Vault   *vault.Vault
	Client  *api.Client
	Engine  *sync.Engine
	Auth    *auth.Service
	Editor  *editor.Editor
	Backups *backup.Manager // nil unless the primary backend is a SQLite file
	Offline bool
	Out     io.Writer

	// Location is the resolved store path or connection string.
	Location  string
	ConfigDir string

	ctx context.Context
}

// Open wires the store, vault, API client and sync engine for one invocation. The store is
// not opened; commands that need it call Load. ctx bounds every outbound call.
func Open(ctx context.Context, opts Options) (*Context, error) {
	configDir := ExpandHome(opts.ConfigDir)
	if configDir == "" {
		configDir = ExpandHome(constants.DefaultConfigDir)
	}

	location, err := ResolveLocation(opts.Location)
	if err != nil {
		return nil, err
	}
	primary, err := NewBackend(location)
	if err != nil {
		return nil, err
	}
	store := storage.New(primary, storage.NewJSONStore(filepath.Join(configDir, fallbackFileName)))

	client, err := api.New(opts.ServerURL)
	if err != nil {
		return nil, err
	}

	v := vault.NewDefault(vault.DefaultSessionPath(), filepath.Join(configDir, constants.CookieFileName))

	var conn sync.Connectivity = sync.NewDialProbe(client.BaseURL())
	if opts.Offline {
		conn = sync.Static(false)
	}
	engineOpts := []sync.Option{sync.WithConnectivity(conn)}

	var backups *backup.Manager
	if _, ok := primary.(*sqlite.Store); ok {
		backups = backup.NewManager(location)
		engineOpts = append(engineOpts, sync.WithSnapshot(backups.SnapshotBeforeSync))
	}

	engine := sync.New(store, v, client, engineOpts...)

	return &Context{
		Store:     store,
		Vault:     v,
		Client:    client,
		Engine:    engine,
		Auth:      auth.New(client, v, store, engine),
		Editor:    editor.New(engine),
		Backups:   backups,
		Offline:   opts.Offline,
		Out:       os.Stdout,
		Location:  location,
		ConfigDir: configDir,
		ctx:       ctx,
	}, nil
}

// Load opens the local store. A failing primary backend degrades to the JSON fallback
// instead of failing the command.
func (c *Context) Load() error {
	if err := c.Store.Open(); err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	if degraded, _ := c.Store.Degraded(); degraded {
		fmt.Fprintf(c.Out, "%s local database unavailable, using %s\n", Warning.Render("⚠"), c.Store.BackendName())
	}
	return nil
}

// Close stops background work and releases the store.
func (c *Context) Close() error {
	c.Engine.Close()
	return c.Store.Close()
}

// Context is cancelled when the user interrupts the command.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// PerformAutomaticBackup snapshots the SQLite store and only logs failures.
func (c *Context) PerformAutomaticBackup() {
	if c.Backups == nil {
		return
	}
	if _, err := c.Backups.Create(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ResolveLocation picks the store location: an explicit value first, then a connection
// string saved in the OS keyring, then the default SQLite path.
func ResolveLocation(location string) (string, error) {
	if strings.TrimSpace(location) != "" {
		return ExpandHome(location), nil
	}
	connStr, err := keyring.GetConnectionString()
	switch {
	case err == nil:
		return connStr, nil
	case errors.Is(err, keyring.ErrNotFound), errors.Is(err, keyring.ErrKeyringUnavailable):
		logger.Debug("No stored connection string", "error", err)
	default:
		return "", err
	}
	return ExpandHome(constants.DefaultStorePath), nil
}

// NewBackend returns the durable backend for location. PostgreSQL connection strings with an
// embedded password are refused; the keyring or .pgpass should hold it instead.
func NewBackend(location string) (storage.Backend, error) {
	if postgres.IsConnString(location) || strings.Contains(location, "host=") {
		if _, err := postgres.ValidateConnString(location); err != nil {
			if errors.Is(err, postgres.ErrEmbeddedCredentials) && fromKeyring(location) {
				return postgres.New(location), nil
			}
			return nil, err
		}
		return postgres.New(location), nil
	}
	return sqlite.NewStore(location), nil
}

// fromKeyring reports whether location is the connection string held in the keyring, which
// is allowed to carry a password.
func fromKeyring(location string) bool {
	stored, err := keyring.GetConnectionString()
	return err == nil && stored == location
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// FormatTime renders t in local time, or "never" for the zero value.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
