// Package auth signs users in and out and seeds their local goals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/progressquest/internal/api"
	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/internal/sync"
	"github.com/julianstephens/progressquest/internal/validation"
	"github.com/julianstephens/progressquest/internal/vault"
)

const failureKeyPrefix = "login_failures:"

// Client is the part of the goal service used for authentication.
type Client interface {
	Login(ctx context.Context, username, password string) (api.AuthResponse, error)
	Register(ctx context.Context, username, password, template string) (api.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Goals(ctx context.Context, token string) (models.GoalSet, error)
	Templates(ctx context.Context) ([]models.Template, error)
}

// Syncer runs a sync after sign-in when local goals already exist.
type Syncer interface {
	Synchronize(ctx context.Context, force bool) sync.Result
	Online(ctx context.Context) bool
}

type Service struct {
	client Client
	vault  *vault.Vault
	store  *storage.Store
	syncer Syncer
	now    func() time.Time
}

func New(client Client, v *vault.Vault, store *storage.Store, syncer Syncer) *Service {
	return &Service{client: client, vault: v, store: store, syncer: syncer, now: time.Now}
}

// SignIn summarizes what happened after credentials were accepted.
type SignIn struct {
	Username string
	Message  string
	// Pulled is the number of goals downloaded into an empty local store.
	Pulled int
	// Sync is set when local goals existed and a forced sync ran instead.
	Sync *sync.Result
}

// Login exchanges credentials for tokens. Failures are counted per username: from the second
// a diagnostic is recorded, and at the third stored tokens are cleared.
func (s *Service) Login(ctx context.Context, username, password string) (SignIn, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return SignIn{}, fmt.Errorf("%w: username and password are required", pqerrors.ErrValidation)
	}

	res, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.recordFailure(username, err)
		return SignIn{}, err
	}
	s.resetFailures(username)
	return s.establish(ctx, username, "", res)
}

// Register creates an account from a starter template and signs it in.
func (s *Service) Register(ctx context.Context, username, password, template string) (SignIn, error) {
	username = strings.TrimSpace(username)
	if err := validation.ValidateUsername(username); err != nil {
		return SignIn{}, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return SignIn{}, err
	}
	if template == "" {
		template = models.DefaultTemplateID
	}

	res, err := s.client.Register(ctx, username, password, template)
	if err != nil {
		return SignIn{}, err
	}
	return s.establish(ctx, username, template, res)
}

func (s *Service) establish(ctx context.Context, username, template string, res api.AuthResponse) (SignIn, error) {
	if res.User.Username != "" {
		username = res.User.Username
	}
	if err := s.vault.StoreTokens(res.Tokens); err != nil {
		return SignIn{}, fmt.Errorf("failed to store credentials: %w", err)
	}
	if err := s.vault.StoreUser(username); err != nil {
		return SignIn{}, fmt.Errorf("failed to store username: %w", err)
	}

	profile, _, err := s.store.GetUserProfile(username)
	if err != nil {
		logger.Warn("Could not read user profile", "user", username, "error", err)
	}
	profile.Username = username
	profile.LastLogin = s.now().UTC()
	profile.RememberMe = true
	if res.User.ID != 0 {
		profile.ServerID = res.User.ID
	}
	if template != "" {
		profile.Template = template
	}
	if err := s.store.SaveUserProfile(profile); err != nil {
		logger.Warn("Could not save user profile", "user", username, "error", err)
	}
	if err := s.store.RememberUser(username); err != nil {
		logger.Warn("Could not remember user", "user", username, "error", err)
	}

	out := SignIn{Username: username, Message: res.Message}
	local, err := s.store.GetGoals(username)
	if err != nil {
		return out, err
	}

	// Never overwrite local goals that may not have reached the server yet.
	if local.Len() > 0 {
		r := s.syncer.Synchronize(ctx, true)
		out.Sync = &r
		return out, nil
	}

	remote, err := s.client.Goals(ctx, res.Tokens.AccessToken)
	if err != nil {
		logger.Warn("Could not fetch goals after sign-in", "user", username, "error", err)
		return out, nil
	}
	if err := s.store.SaveGoals(remote.Skills, remote.Financial, username); err != nil {
		return out, fmt.Errorf("failed to store downloaded goals: %w", err)
	}
	out.Pulled = remote.Len()
	logger.Info("Signed in", "user", username, "pulled", out.Pulled)
	return out, nil
}

// Logout tells the server when reachable and always clears local token material. Goals and
// the username are kept.
func (s *Service) Logout(ctx context.Context) error {
	if token := s.vault.GetToken(); token != "" && s.syncer.Online(ctx) {
		if err := s.client.Logout(ctx, token); err != nil {
			logger.Warn("Server logout failed; clearing local session anyway", "error", err)
		}
	}
	if err := s.vault.ClearTokens(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	logger.Info("Signed out", "user", s.vault.GetUsername())
	return nil
}

// Identity is the local view of who is signed in.
type Identity struct {
	Username      string
	Authenticated bool
	Expiry        time.Time
	Profile       *models.UserProfile
	KnownUsers    []string
	LastSync      time.Time
}

func (s *Service) Whoami() (Identity, error) {
	sess := s.vault.Session()
	id := Identity{Username: sess.Username, Authenticated: sess.Authenticated(), Expiry: sess.Tokens.Expiry}

	users, err := s.store.KnownUsers()
	if err != nil {
		return id, err
	}
	id.KnownUsers = users
	if sess.Username == "" {
		return id, nil
	}

	if p, found, err := s.store.GetUserProfile(sess.Username); err != nil {
		return id, err
	} else if found {
		id.Profile = &p
	}
	if last, ok, err := s.store.LastSyncTime(sess.Username); err == nil && ok {
		id.LastSync = last
	}
	return id, nil
}

// Templates lists server templates, falling back to the built-in set when the server is
// unreachable. remote reports which source was used.
func (s *Service) Templates(ctx context.Context) (templates []models.Template, remote bool) {
	if s.syncer.Online(ctx) {
		ts, err := s.client.Templates(ctx)
		if err == nil && len(ts) > 0 {
			return ts, true
		}
		if err != nil {
			logger.Debug("Template fetch failed, using built-ins", "error", err)
		}
	}
	return models.BuiltinTemplates(), false
}

func (s *Service) recordFailure(username string, cause error) {
	if pqerrors.IsTransient(cause) {
		return
	}

	var attempts int
	if _, err := s.store.Get(storage.CollectionUserData, failureKeyPrefix+username, &attempts); err != nil {
		logger.Warn("Could not read login failure count", "error", err)
	}
	attempts++
	if err := s.store.Put(storage.CollectionUserData, failureKeyPrefix+username, attempts); err != nil {
		logger.Warn("Could not store login failure count", "error", err)
	}

	if attempts >= constants.LoginFailureDiagnosticAt {
		msg := cause.Error()
		var apiErr *api.Error
		if errors.As(cause, &apiErr) {
			msg = apiErr.Message
		}
		err := s.store.RecordDiagnostic(models.LoginFailure{
			Username:  username,
			Attempt:   attempts,
			Kind:      pqerrors.Kind(cause),
			Message:   msg,
			Timestamp: s.now().UTC(),
		})
		if err != nil {
			logger.Warn("Could not record login diagnostic", "error", err)
		}
	}
	if attempts >= constants.LoginFailureResetAt {
		logger.Warn("Repeated login failures; clearing stored tokens", "user", username, "attempts", attempts)
		if err := s.vault.ClearTokens(); err != nil {
			logger.Warn("Could not clear tokens", "error", err)
		}
	}
}

func (s *Service) resetFailures(username string) {
	if err := s.store.Delete(storage.CollectionUserData, failureKeyPrefix+username); err != nil {
		logger.Debug("Could not reset login failure count", "error", err)
	}
}

// FailedAttempts returns the consecutive failed logins recorded for username.
func (s *Service) FailedAttempts(username string) int {
	var attempts int
	_, _ = s.store.Get(storage.CollectionUserData, failureKeyPrefix+username, &attempts)
	return attempts
}
