package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/keyring"
	"github.com/julianstephens/progressquest/internal/storage/postgres"
)

// KeyringSetCmd stores a PostgreSQL connection string for the local store in the OS keyring.
type KeyringSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in keyring."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	if !postgres.IsConnString(cmd.ConnectionString) && !strings.Contains(cmd.ConnectionString, "host=") {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}

	if _, err := postgres.ValidateConnString(cmd.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		fmt.Fprintln(ctx.Out, cli.Warning.Render("⚠ Connection string contains a password."))
		fmt.Fprintln(ctx.Out, "  It is stored as-is in the encrypted OS keyring. Use .pgpass to keep it separate.")
	}

	if err := keyring.SetConnectionString(cmd.ConnectionString); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	fmt.Fprintln(ctx.Out, "✓ Connection string stored in OS keyring")
	fmt.Fprintln(ctx.Out, "  pquest uses it whenever --store is not set")
	return nil
}

type KeyringGetCmd struct{}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	connStr, err := keyring.GetConnectionString()
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring. Use 'pquest keyring set' to store one")
		}
		return fmt.Errorf("failed to retrieve connection string from keyring: %w", err)
	}
	fmt.Fprintln(ctx.Out, maskPassword(connStr))
	return nil
}

type KeyringDeleteCmd struct{}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteConnectionString(); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	fmt.Fprintln(ctx.Out, "✓ Connection string deleted from OS keyring")
	return nil
}

type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Fprintln(ctx.Out, "❌ OS keyring is not available on this system")
		fmt.Fprintln(ctx.Out, "   Sign-in tokens are kept in the session and cookie files only.")
		return errors.New("keyring unavailable")
	}
	fmt.Fprintln(ctx.Out, "✓ OS keyring is available")

	if _, err := keyring.GetConnectionString(); err == nil {
		fmt.Fprintln(ctx.Out, "✓ Connection string is stored in keyring")
	} else if errors.Is(err, keyring.ErrNotFound) {
		fmt.Fprintln(ctx.Out, "ℹ No connection string stored in keyring")
	}
	if ctx.Vault.GetToken() != "" {
		fmt.Fprintf(ctx.Out, "✓ Session for %s is stored\n", ctx.Vault.GetUsername())
	}
	return nil
}

// maskPassword hides the password in URL or key=value connection strings.
func maskPassword(connStr string) string {
	if postgres.IsConnString(connStr) {
		if idx := strings.Index(connStr, "://"); idx != -1 {
			rest := connStr[idx+3:]
			if at := strings.LastIndex(rest, "@"); at != -1 {
				userInfo := rest[:at]
				if colon := strings.Index(userInfo, ":"); colon != -1 {
					return connStr[:idx+3] + userInfo[:colon] + ":****" + rest[at:]
				}
			}
		}
		return connStr
	}

	parts := strings.Fields(connStr)
	for i, part := range parts {
		if strings.HasPrefix(strings.ToLower(part), "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}
