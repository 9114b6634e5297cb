package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
)

// Client talks to the goal service. Every call carries its own timeout.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	now     func() time.Time
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}

	c := &Client{baseURL: u, http: &http.Client{}, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// User is the account summary returned with tokens.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// AuthResponse is the normalized result of login, register or refresh.
type AuthResponse struct {
	Tokens  models.Tokens
	User    User
	Message string
}

// authBody accepts both the current token shape and the legacy {token, user} one.
type authBody struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         User   `json:"user"`
	Message      string `json:"message"`
}

func (c *Client) normalizeAuth(b authBody) (AuthResponse, error) {
	access := b.AccessToken
	if access == "" {
		access = b.Token
	}
	if access == "" {
		return AuthResponse{}, fmt.Errorf("%w: response carried no token", pqerrors.ErrServerRejected)
	}
	t := models.Tokens{AccessToken: access, RefreshToken: b.RefreshToken}
	if b.ExpiresIn > 0 {
		t.Expiry = c.now().Add(time.Duration(b.ExpiresIn) * time.Second).UTC()
	}
	return AuthResponse{Tokens: t, User: b.User, Message: b.Message}, nil
}

// Login exchanges credentials for tokens.
func (c *Client) Login(ctx context.Context, username, password string) (AuthResponse, error) {
	var body authBody
	err := c.do(ctx, constants.LoginTimeout, http.MethodPost, "/api/login", "",
		map[string]string{"username": username, "password": password}, &body)
	if err != nil {
		return AuthResponse{}, err
	}
	return c.normalizeAuth(body)
}

// Register creates an account seeded from template and signs it in.
func (c *Client) Register(ctx context.Context, username, password, template string) (AuthResponse, error) {
	var body authBody
	err := c.do(ctx, constants.LoginTimeout, http.MethodPost, "/api/register", "",
		map[string]string{"username": username, "password": password, "template": template}, &body)
	if err != nil {
		return AuthResponse{}, asUsernameTaken(err)
	}
	return c.normalizeAuth(body)
}

// Refresh trades a refresh token for new tokens.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	var body authBody
	err := c.do(ctx, constants.RefreshTimeout, http.MethodPost, "/api/token/refresh", "",
		map[string]string{"refresh_token": refreshToken}, &body)
	if err != nil {
		return models.Tokens{}, err
	}
	res, err := c.normalizeAuth(body)
	return res.Tokens, err
}

// Logout is best-effort; callers clean up locally whatever it returns.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, constants.LogoutTimeout, http.MethodPost, "/api/logout", token, nil, nil)
}

// Goals fetches the user's goals.
func (c *Client) Goals(ctx context.Context, token string) (models.GoalSet, error) {
	var set models.GoalSet
	if err := c.do(ctx, constants.GoalsTimeout, http.MethodGet, "/api/goals", token, nil, &set); err != nil {
		return models.GoalSet{}, err
	}
	return normalizeSet(set), nil
}

type goalBody struct {
	ID       *int64          `json:"id,omitempty"`
	Name     string          `json:"name"`
	Current  float64         `json:"current"`
	Target   float64         `json:"target"`
	Deadline *string         `json:"deadline"`
	Type     models.GoalType `json:"type"`
}

// SaveGoal creates a goal (no id) or updates one; the server assigns ids on create.
func (c *Client) SaveGoal(ctx context.Context, token string, g models.Goal) (models.Goal, error) {
	var out models.Goal
	in := goalBody{ID: g.ID, Name: g.Name, Current: g.Current, Target: g.Target, Deadline: g.Deadline, Type: g.Type}
	if err := c.do(ctx, constants.GoalsTimeout, http.MethodPost, "/api/goals", token, in, &out); err != nil {
		return models.Goal{}, err
	}
	out.Normalize()
	return out, nil
}

// DeleteGoal removes a goal by server id.
func (c *Client) DeleteGoal(ctx context.Context, token string, id int64) error {
	return c.do(ctx, constants.GoalsTimeout, http.MethodDelete, "/api/goals/"+strconv.FormatInt(id, 10), token, nil, nil)
}

// SyncRequest uploads the full local set with the last checkpoint.
type SyncRequest struct {
	Skills    []models.Goal `json:"skills"`
	Financial []models.Goal `json:"financial"`
	LastSync  *time.Time    `json:"last_sync"`
}

// SyncResponse is the server's authoritative set after merging.
type SyncResponse struct {
	Skills    []models.Goal `json:"skills"`
	Financial []models.Goal `json:"financial"`
	SyncTime  string        `json:"sync_time"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
}

// Sync performs the combined upload and download.
func (c *Client) Sync(ctx context.Context, token string, req SyncRequest) (SyncResponse, error) {
	if req.Skills == nil {
		req.Skills = []models.Goal{}
	}
	if req.Financial == nil {
		req.Financial = []models.Goal{}
	}

	var res SyncResponse
	if err := c.do(ctx, constants.SyncTimeout, http.MethodPost, "/api/sync", token, req, &res); err != nil {
		return SyncResponse{}, err
	}
	set := normalizeSet(models.GoalSet{Skills: res.Skills, Financial: res.Financial})
	res.Skills, res.Financial = set.Skills, set.Financial
	return res, nil
}

type templatesBody struct {
	Templates []models.Template `json:"templates"`
}

// Templates lists the starter templates offered by the server.
func (c *Client) Templates(ctx context.Context) ([]models.Template, error) {
	var body templatesBody
	if err := c.do(ctx, constants.TemplatesTimeout, http.MethodGet, "/api/templates", "", nil, &body); err != nil {
		return nil, err
	}
	return body.Templates, nil
}

// normalizeSet types every goal by its partition and drops records that fail validation.
func normalizeSet(set models.GoalSet) models.GoalSet {
	clean := func(t models.GoalType, goals []models.Goal) []models.Goal {
		out := make([]models.Goal, 0, len(goals))
		for _, g := range goals {
			g.Type = t
			g.Normalize()
			if err := g.Validate(); err != nil {
				logger.Warn("Dropping invalid goal from server", "name", g.Name, "error", err)
				continue
			}
			out = append(out, g)
		}
		return out
	}
	return models.GoalSet{
		Skills:    clean(models.GoalTypeSkill, set.Skills),
		Financial: clean(models.GoalTypeFinancial, set.Financial),
	}
}

func (c *Client) do(ctx context.Context, timeout time.Duration, method, path, token string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constants.BinaryName+"/"+constants.Version)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s after %v", pqerrors.ErrTimeout, method, path, timeout)
		}
		return fmt.Errorf("%w: %s %s: %v", pqerrors.ErrNetworkUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	logger.Debug("API call", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&eb)
		return newError(resp.StatusCode, eb)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: reading %s response", pqerrors.ErrTimeout, path)
		}
		return fmt.Errorf("%w: malformed %s response: %v", pqerrors.ErrServerRejected, path, err)
	}
	return nil
}
