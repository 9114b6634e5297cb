// Package sync reconciles the local store with the goal service.
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	gosync "sync"
	"time"

	"github.com/julianstephens/progressquest/internal/api"
	"github.com/julianstephens/progressquest/internal/constants"
	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/storage"
	"github.com/julianstephens/progressquest/internal/vault"
)

// Remote is the part of the goal service the engine talks to.
type Remote interface {
	Sync(ctx context.Context, token string, req api.SyncRequest) (api.SyncResponse, error)
	Refresh(ctx context.Context, refreshToken string) (models.Tokens, error)
	DeleteGoal(ctx context.Context, token string, id int64) error
}

// Engine admits at most one sync at a time, enforces a cooldown between unforced attempts,
// and schedules follow-up and background syncs. One engine serves one store and vault.
type Engine struct {
	store  *storage.Store
	vault  *vault.Vault
	remote Remote
	conn   Connectivity

	snapshot func() error
	now      func() time.Time

	cooldown        time.Duration
	queuedDelay     time.Duration
	backgroundDelay time.Duration

	mu          gosync.Mutex
	syncing     bool
	pending     bool
	lastAttempt time.Time
	closed      bool
	timers      map[*time.Timer]struct{}

	// saveMu serializes local read-modify-write of the goal set. localGen counts local writes
	// and is guarded by saveMu.
	saveMu   gosync.Mutex
	localGen uint64

	subMu gosync.Mutex
	subs  map[chan Result]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     gosync.WaitGroup
}

type Option func(*Engine)

func WithConnectivity(c Connectivity) Option {
	return func(e *Engine) { e.conn = c }
}

// WithSnapshot runs fn before server data replaces the local goals. Errors are logged only.
func WithSnapshot(fn func() error) Option {
	return func(e *Engine) { e.snapshot = fn }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTiming overrides the cooldown and the queued and background delays.
func WithTiming(cooldown, queued, background time.Duration) Option {
	return func(e *Engine) {
		e.cooldown = cooldown
		e.queuedDelay = queued
		e.backgroundDelay = background
	}
}

func New(store *storage.Store, v *vault.Vault, remote Remote, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:           store,
		vault:           v,
		remote:          remote,
		conn:            Static(true),
		now:             time.Now,
		cooldown:        constants.SyncCooldown,
		queuedDelay:     constants.QueuedSyncDelay,
		backgroundDelay: constants.BackgroundSyncDelay,
		timers:          make(map[*time.Timer]struct{}),
		subs:            make(map[chan Result]struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Online reports the connectivity probe's answer.
func (e *Engine) Online(ctx context.Context) bool {
	return e.conn.Online(ctx)
}

// Syncing reports whether a sync is in flight.
func (e *Engine) Syncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// Subscribe delivers every sync result until cancel is called. Slow subscribers miss results.
func (e *Engine) Subscribe() (<-chan Result, func()) {
	ch := make(chan Result, 8)
	e.subMu.Lock()
	e.subs[ch] = struct{}{}
	e.subMu.Unlock()

	var once gosync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			delete(e.subs, ch)
			e.subMu.Unlock()
		})
	}
}

func (e *Engine) publish(r Result) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- r:
		default:
			logger.Debug("Dropping sync result for slow subscriber", "state", r.State())
		}
	}
}

// Synchronize runs one sync unless one is already running (queued) or, when not forced, the
// cooldown has not elapsed (throttled).
func (e *Engine) Synchronize(ctx context.Context, force bool) Result {
	e.mu.Lock()
	if e.syncing {
		e.pending = true
		e.mu.Unlock()
		logger.Debug("Sync already in flight; queued")
		return Result{Queued: true}
	}
	now := e.now()
	if !force && !e.lastAttempt.IsZero() && now.Sub(e.lastAttempt) < e.cooldown {
		last := e.lastAttempt
		e.mu.Unlock()
		logger.Debug("Sync throttled", "last_attempt", last)
		return Result{Throttled: true, LastAttempt: last}
	}
	e.syncing = true
	e.lastAttempt = now
	e.mu.Unlock()

	defer e.finish()

	start := time.Now()
	res := e.run(ctx)
	logger.Info("Sync finished", "state", res.State(), "elapsed", time.Since(start), "error", res.Err)
	e.publish(res)
	return res
}

func (e *Engine) finish() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncing = false
	if e.pending {
		e.pending = false
		e.scheduleLocked(e.queuedDelay, true)
	}
}

func (e *Engine) run(ctx context.Context) Result {
	if !e.conn.Online(ctx) {
		return Result{Offline: true, Err: pqerrors.ErrNetworkUnavailable}
	}

	token := e.vault.GetToken()
	if token == "" {
		return Result{Unauthenticated: true, Err: pqerrors.ErrUnauthorized}
	}
	username := e.vault.GetUsername()
	if username == "" {
		return Result{NoUsername: true, Err: pqerrors.ErrUnauthorized}
	}

	if e.vault.NeedsRefresh() && e.vault.GetRefreshToken() != "" {
		if t, err := e.vault.Refresh(ctx, e.remote); err != nil {
			logger.Warn("Proactive token refresh failed", "error", err)
		} else {
			token = t.AccessToken
		}
	}

	resp, gen, err := e.exchange(ctx, token, username)
	if errors.Is(err, pqerrors.ErrTokenExpired) {
		logger.Info("Access token expired during sync; refreshing")
		t, rerr := e.vault.Refresh(ctx, e.remote)
		if rerr != nil {
			return Result{Err: fmt.Errorf("session expired: %w", rerr)}
		}
		resp, gen, err = e.exchange(ctx, t.AccessToken, username)
	}
	if err != nil {
		return Result{Err: err}
	}

	if e.snapshot != nil {
		if err := e.snapshot(); err != nil {
			logger.Warn("Pre-sync snapshot failed", "error", err)
		}
	}

	if err := e.apply(username, gen, resp); err != nil {
		return Result{Err: fmt.Errorf("failed to store synced goals: %w", err)}
	}

	return Result{
		Success:   true,
		SyncTime:  resp.SyncTime,
		Created:   resp.Created,
		Updated:   resp.Updated,
		Skills:    len(resp.Skills),
		Financial: len(resp.Financial),
	}
}

// exchange flushes pending remote deletions and performs the combined upload and download.
// It also returns the local write generation the uploaded set was read at.
func (e *Engine) exchange(ctx context.Context, token, username string) (api.SyncResponse, uint64, error) {
	if err := e.flushDeletes(ctx, token, username); err != nil {
		return api.SyncResponse{}, 0, err
	}

	e.saveMu.Lock()
	gen := e.localGen
	set, err := e.store.GetGoals(username)
	e.saveMu.Unlock()
	if err != nil {
		return api.SyncResponse{}, 0, fmt.Errorf("failed to read local goals: %w", err)
	}
	req := api.SyncRequest{Skills: set.Skills, Financial: set.Financial}
	if last, ok, err := e.store.LastSyncTime(username); err != nil {
		logger.Warn("Could not read sync checkpoint", "error", err)
	} else if ok {
		req.LastSync = &last
	}

	resp, err := e.remote.Sync(ctx, token, req)
	return resp, gen, err
}

// apply stores the server's set, minus goals still waiting for remote deletion. When local
// writes landed while the request was in flight the local set is kept instead, server ids are
// adopted by name, and a follow-up sync is queued to upload the newer edits.
func (e *Engine) apply(username string, gen uint64, resp api.SyncResponse) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	deleted, err := e.store.PendingDeletes(username)
	if err != nil {
		return err
	}
	server := withoutIDs(models.GoalSet{Skills: resp.Skills, Financial: resp.Financial}, deleted)

	if e.localGen == gen {
		return e.store.SaveGoals(server.Skills, server.Financial, username)
	}

	local, err := e.store.GetGoals(username)
	if err != nil {
		return err
	}
	merged := adoptIDs(local, server)
	if err := e.store.SaveGoals(merged.Skills, merged.Financial, username); err != nil {
		return err
	}

	e.mu.Lock()
	e.pending = true
	e.mu.Unlock()
	logger.Info("Local goals changed during sync; keeping them and queueing a follow-up", "user", username)
	return nil
}

func withoutIDs(set models.GoalSet, ids []int64) models.GoalSet {
	if len(ids) == 0 {
		return set
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	keep := func(goals []models.Goal) []models.Goal {
		out := make([]models.Goal, 0, len(goals))
		for _, g := range goals {
			if g.HasID() && drop[*g.ID] {
				continue
			}
			out = append(out, g)
		}
		return out
	}
	return models.GoalSet{Skills: keep(set.Skills), Financial: keep(set.Financial)}
}

// adoptIDs gives local goals without an id the id the server assigned to the same name.
func adoptIDs(local, server models.GoalSet) models.GoalSet {
	for _, t := range []models.GoalType{models.GoalTypeSkill, models.GoalTypeFinancial} {
		goals := local.Of(t)
		for i, g := range goals {
			if g.HasID() {
				continue
			}
			s, ok := server.Find(t, g.Name)
			if !ok || !s.HasID() {
				continue
			}
			if _, taken := local.FindByID(*s.ID); !taken {
				id := *s.ID
				goals[i].ID = &id
			}
		}
		local = local.With(t, goals)
	}
	return local
}

// flushDeletes removes goals deleted offline from the server so the merge does not restore
// them. Auth errors abort; anything else leaves the id pending.
func (e *Engine) flushDeletes(ctx context.Context, token, username string) error {
	ids, err := e.store.PendingDeletes(username)
	if err != nil || len(ids) == 0 {
		return err
	}

	var done []int64
	for _, id := range ids {
		err := e.remote.DeleteGoal(ctx, token, id)
		var apiErr *api.Error
		switch {
		case err == nil, errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
			done = append(done, id)
		case errors.Is(err, pqerrors.ErrUnauthorized), errors.Is(err, pqerrors.ErrTokenExpired):
			_ = e.store.ResolvePendingDeletes(username, done)
			return err
		default:
			logger.Warn("Remote delete failed; will retry", "id", id, "error", err)
		}
	}
	return e.store.ResolvePendingDeletes(username, done)
}

// Schedule runs an unforced sync after delay in the background. The connectivity probe runs
// when the timer fires; an offline device skips the attempt.
func (e *Engine) Schedule(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduleLocked(delay, false)
}

func (e *Engine) scheduleLocked(delay time.Duration, force bool) {
	if e.closed {
		return
	}
	e.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer e.wg.Done()
		e.mu.Lock()
		_, live := e.timers[t]
		delete(e.timers, t)
		e.mu.Unlock()
		if !live {
			return
		}
		if !force && !e.conn.Online(e.ctx) {
			logger.Debug("Offline; background sync skipped")
			return
		}
		res := e.Synchronize(e.ctx, force)
		if res.Queued || res.Throttled {
			return
		}
		logger.Debug("Background sync done", "state", res.State())
	})
	e.timers[t] = struct{}{}
}

// Close cancels scheduled syncs and waits for running background work.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for t := range e.timers {
		if t.Stop() {
			e.wg.Done()
		}
		delete(e.timers, t)
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}
