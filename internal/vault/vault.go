package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
)

// Keys stored in every scope.
const (
	KeyAccessToken  = "access_token"
	KeyLegacyToken  = "token"
	KeyRefreshToken = "refresh_token"
	KeyTokenExpiry  = "token_expiry"
	KeyUsername     = "username"
	KeyLastLogin    = "last_login"
)

// ErrNoRefreshToken means a refresh was requested but no scope holds a refresh token.
var ErrNoRefreshToken = fmt.Errorf("%w: no refresh token stored", pqerrors.ErrUnauthorized)

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
}

// Vault is the single source of truth for the signed-in user and their tokens. Scopes are
// ordered from most to least preferred; a value found in a later scope is copied back into
// the earlier ones.
type Vault struct {
	scopes []Scope
	now    func() time.Time
}

func New(scopes ...Scope) *Vault {
	return &Vault{scopes: scopes, now: time.Now}
}

// NewDefault builds the durable keyring, session file and cookie file scopes.
func NewDefault(sessionPath, cookiePath string) *Vault {
	return New(NewKeyringScope(), NewSessionScope(sessionPath), NewCookieScope(cookiePath))
}

func (v *Vault) Scopes() []Scope {
	return v.scopes
}

// lookup returns the first value found for any of keys, scanning scopes in order, and writes
// it back under keys[0] into every scope before the one it came from.
func (v *Vault) lookup(keys ...string) (string, bool) {
	for i, scope := range v.scopes {
		for _, key := range keys {
			val, err := scope.Get(key)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					logger.Debug("Credential scope read failed", "scope", scope.Name(), "key", key, "error", err)
				}
				continue
			}
			if val == "" {
				continue
			}
			v.writeBack(i, keys[0], val)
			return val, true
		}
	}
	return "", false
}

func (v *Vault) writeBack(foundAt int, key, val string) {
	for _, scope := range v.scopes[:foundAt] {
		if err := scope.Set(key, val); err != nil {
			logger.Debug("Credential write-back failed", "scope", scope.Name(), "key", key, "error", err)
		}
	}
}

// GetToken returns the access token, accepting the legacy "token" key.
func (v *Vault) GetToken() string {
	t, _ := v.lookup(KeyAccessToken, KeyLegacyToken)
	return t
}

func (v *Vault) GetRefreshToken() string {
	t, _ := v.lookup(KeyRefreshToken)
	return t
}

func (v *Vault) GetUsername() string {
	u, _ := v.lookup(KeyUsername)
	return u
}

// TokenExpiry returns the stored expiry, or the token's own exp claim when none was stored.
func (v *Vault) TokenExpiry() time.Time {
	if raw, ok := v.lookup(KeyTokenExpiry); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	if tok := v.GetToken(); tok != "" {
		return ExpiryFromJWT(tok)
	}
	return time.Time{}
}

func (v *Vault) Tokens() models.Tokens {
	return models.Tokens{
		AccessToken:  v.GetToken(),
		RefreshToken: v.GetRefreshToken(),
		Expiry:       v.TokenExpiry(),
	}
}

func (v *Vault) Session() models.Session {
	return models.Session{Username: v.GetUsername(), Tokens: v.Tokens()}
}

// NeedsRefresh reports whether the access token expires within the refresh threshold.
func (v *Vault) NeedsRefresh() bool {
	return v.Tokens().NeedsRefresh(v.now(), constants.TokenRefreshThreshold)
}

// writeAll applies fn to every scope. It fails only when every scope failed.
func (v *Vault) writeAll(op string, fn func(s Scope) error) error {
	if len(v.scopes) == 0 {
		return fmt.Errorf("%s: no credential scopes configured", op)
	}

	var errs []error
	for _, scope := range v.scopes {
		if err := fn(scope); err != nil {
			logger.Warn("Credential scope write failed", "op", op, "scope", scope.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", scope.Name(), err))
		}
	}
	if len(errs) == len(v.scopes) {
		return fmt.Errorf("%s failed in every scope: %w", op, errors.Join(errs...))
	}
	return nil
}

// StoreTokens writes t to every scope. A missing refresh token leaves the stored one alone.
func (v *Vault) StoreTokens(t models.Tokens) error {
	if t.AccessToken == "" {
		return fmt.Errorf("%w: access token is empty", pqerrors.ErrValidation)
	}
	if t.Expiry.IsZero() {
		t.Expiry = ExpiryFromJWT(t.AccessToken)
	}
	now := v.now().UTC().Format(time.RFC3339)

	return v.writeAll("store tokens", func(s Scope) error {
		if err := s.Set(KeyAccessToken, t.AccessToken); err != nil {
			return err
		}
		if t.RefreshToken != "" {
			if err := s.Set(KeyRefreshToken, t.RefreshToken); err != nil {
				return err
			}
		}
		if !t.Expiry.IsZero() {
			if err := s.Set(KeyTokenExpiry, t.Expiry.UTC().Format(time.RFC3339)); err != nil {
				return err
			}
		} else if err := s.Delete(KeyTokenExpiry); err != nil {
			return err
		}
		if err := s.Delete(KeyLegacyToken); err != nil {
			return err
		}
		return s.Set(KeyLastLogin, now)
	})
}

// StoreUser writes username to every scope.
func (v *Vault) StoreUser(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is empty", pqerrors.ErrValidation)
	}
	return v.writeAll("store user", func(s Scope) error {
		return s.Set(KeyUsername, username)
	})
}

// ClearTokens removes token material from every scope. The username stays so the next
// sign-in can be pre-filled and local goals remain reachable.
func (v *Vault) ClearTokens() error {
	return v.writeAll("clear tokens", func(s Scope) error {
		var errs []error
		for _, key := range []string{KeyAccessToken, KeyLegacyToken, KeyRefreshToken, KeyTokenExpiry} {
			if err := s.Delete(key); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Refresh trades the stored refresh token for new tokens and stores them. The refresh token is
// only replaced when the server rotated it.
func (v *Vault) Refresh(ctx context.Context, r Refresher) (models.Tokens, error) {
	refreshToken := v.GetRefreshToken()
	if refreshToken == "" {
		return models.Tokens{}, ErrNoRefreshToken
	}

	t, err := r.Refresh(ctx, refreshToken)
	if err != nil {
		return models.Tokens{}, fmt.Errorf("token refresh failed: %w", err)
	}
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	if err := v.StoreTokens(t); err != nil {
		return models.Tokens{}, err
	}
	logger.Info("Access token refreshed", "expiry", t.Expiry)
	return t, nil
}
