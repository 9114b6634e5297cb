package storage

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
)

const (
	registeredUsersKey  = "registered_users"
	profileKeyPrefix    = "profile:"
	diagnosticPrefix    = "diagnostic:"
	diagnosticType      = "login_failure"
	pendingDeletePrefix = "pending_delete:"
)

type syncCheckpoint struct {
	UserID   string    `json:"user_id"`
	LastSync time.Time `json:"last_sync"`
}

// Store is the local store. Writes go to the primary backend; when the primary could not be
// opened the store runs on the fallback for its whole lifetime, and when a single primary call
// fails that call alone is retried on the fallback.
type Store struct {
	primary  Backend
	fallback Backend

	mu       sync.RWMutex
	degraded bool
	reason   error

	// saveMu serializes replace-all writes on top of backend transactions.
	saveMu sync.Mutex

	now    func() time.Time
	newKey func() string
}

// New creates a store. primary may be nil, which starts the store degraded.
func New(primary, fallback Backend) *Store {
	return &Store{
		primary:  primary,
		fallback: fallback,
		now:      time.Now,
		newKey:   uuid.NewString,
	}
}

// Open opens both backends. A primary failure degrades the store; only losing both is an error.
func (s *Store) Open() error {
	var primaryErr error
	if s.primary == nil {
		primaryErr = fmt.Errorf("no durable backend configured")
	} else if err := s.primary.Open(); err != nil {
		primaryErr = fmt.Errorf("%s: %w", s.primary.Name(), err)
	}

	var fallbackErr error
	if s.fallback != nil {
		if err := s.fallback.Open(); err != nil {
			fallbackErr = fmt.Errorf("%s: %w", s.fallback.Name(), err)
			logger.Warn("Fallback store unavailable", "error", err)
		}
	} else {
		fallbackErr = fmt.Errorf("no fallback backend configured")
	}

	if primaryErr != nil {
		s.mu.Lock()
		s.degraded = true
		s.reason = primaryErr
		s.mu.Unlock()
		logger.Warn("Durable store unavailable, using fallback for this session", "error", primaryErr)
		if fallbackErr != nil {
			return fmt.Errorf("%w: %v; %v", pqerrors.ErrStorageUnavailable, primaryErr, fallbackErr)
		}
	}
	return nil
}

func (s *Store) Close() error {
	var errs []error
	if s.primary != nil {
		if err := s.primary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.fallback != nil {
		if err := s.fallback.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Degraded reports whether the store is running on the fallback backend, and why.
func (s *Store) Degraded() (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded, s.reason
}

// BackendName names the backend currently serving requests.
func (s *Store) BackendName() string {
	if b := s.active(); b != nil {
		return b.Name()
	}
	return "none"
}

// Primary returns the durable backend, or nil.
func (s *Store) Primary() Backend {
	return s.primary
}

func (s *Store) active() Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.degraded || s.primary == nil {
		return s.fallback
	}
	return s.primary
}

// do runs op on the active backend and, if that is the primary and it fails, once more on
// the fallback.
func (s *Store) do(name string, op func(b Backend) error) error {
	b := s.active()
	if b == nil {
		return fmt.Errorf("%w: no backend available", pqerrors.ErrStorageUnavailable)
	}

	err := op(b)
	if err == nil || b == s.fallback || s.fallback == nil {
		if err != nil {
			return fmt.Errorf("%w: %s: %v", pqerrors.ErrStorageUnavailable, name, err)
		}
		return nil
	}

	logger.Warn("Durable store call failed, using fallback", "op", name, "backend", b.Name(), "error", err)
	if ferr := op(s.fallback); ferr != nil {
		return fmt.Errorf("%w: %s: %v; fallback: %v", pqerrors.ErrStorageUnavailable, name, err, ferr)
	}
	return nil
}

// Put stores or overwrites value under collection/key.
func (s *Store) Put(collection, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, key, err)
	}
	return s.putRecord(Record{Collection: collection, Key: key, Value: data})
}

func (s *Store) putRecord(r Record) error {
	r.UpdatedAt = s.now().UTC()
	return s.do("put", func(b Backend) error { return b.Put(r) })
}

// Get decodes the value under collection/key into dst. A missing key is found=false, not an error.
func (s *Store) Get(collection, key string, dst any) (bool, error) {
	var (
		rec   Record
		found bool
	)
	err := s.do("get", func(b Backend) error {
		var err error
		rec, found, err = b.Get(collection, key)
		return err
	})
	if err != nil || !found {
		return false, err
	}
	if err := rec.Decode(dst); err != nil {
		return false, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return true, nil
}

// GetAll returns every record in collection accepted by pred. A nil pred accepts all.
func (s *Store) GetAll(collection string, pred func(Record) bool) ([]Record, error) {
	var recs []Record
	err := s.do("scan", func(b Backend) error {
		var err error
		recs, err = b.Scan(collection, Filter{})
		return err
	})
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return recs, nil
	}

	out := recs[:0]
	for _, r := range recs {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Delete(collection, key string) error {
	return s.do("delete", func(b Backend) error { return b.Delete(collection, key) })
}

// SaveGoals replaces every goal of userID with skills and financial and moves the sync
// checkpoint to now. On a transactional backend the replacement is atomic; the fallback clears
// and inserts sequentially.
func (s *Store) SaveGoals(skills, financial []models.Goal, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", pqerrors.ErrValidation)
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	now := s.now().UTC()
	records, err := s.goalRecords(skills, financial, userID, now)
	if err != nil {
		return err
	}
	checkpoint, err := json.Marshal(syncCheckpoint{UserID: userID, LastSync: now})
	if err != nil {
		return fmt.Errorf("failed to encode sync checkpoint: %w", err)
	}
	cp := Record{Collection: CollectionSyncInfo, Key: userID, UserID: userID, Value: checkpoint, UpdatedAt: now}

	write := func(w Writer) error {
		if _, err := w.DeleteWhere(CollectionGoals, Filter{UserID: userID}); err != nil {
			return err
		}
		for _, r := range records {
			if err := w.Put(r); err != nil {
				return err
			}
		}
		return w.Put(cp)
	}

	return s.do("save goals", func(b Backend) error {
		if batcher, ok := b.(Batcher); ok {
			return batcher.Batch(write)
		}
		return write(b)
	})
}

func (s *Store) goalRecords(skills, financial []models.Goal, userID string, now time.Time) ([]Record, error) {
	records := make([]Record, 0, len(skills)+len(financial))
	add := func(t models.GoalType, goals []models.Goal) error {
		for _, g := range goals {
			g = g.Clone()
			g.Type = t
			g.Normalize()
			if err := g.Validate(); err != nil {
				return fmt.Errorf("%w: %v", pqerrors.ErrValidation, err)
			}
			data, err := json.Marshal(g)
			if err != nil {
				return fmt.Errorf("failed to encode goal %q: %w", g.Name, err)
			}
			records = append(records, Record{
				Collection: CollectionGoals,
				Key:        s.newKey(),
				UserID:     userID,
				Type:       string(t),
				Seq:        len(records),
				Value:      data,
				UpdatedAt:  now,
			})
		}
		return nil
	}
	if err := add(models.GoalTypeSkill, skills); err != nil {
		return nil, err
	}
	if err := add(models.GoalTypeFinancial, financial); err != nil {
		return nil, err
	}
	return records, nil
}

// GetGoals returns userID's goals partitioned by type. Records that no longer decode into a
// valid goal are skipped.
func (s *Store) GetGoals(userID string) (models.GoalSet, error) {
	set := models.GoalSet{Skills: []models.Goal{}, Financial: []models.Goal{}}

	var recs []Record
	err := s.do("get goals", func(b Backend) error {
		var err error
		recs, err = b.Scan(CollectionGoals, Filter{UserID: userID})
		return err
	})
	if err != nil {
		return set, err
	}

	for _, r := range recs {
		var g models.Goal
		if err := r.Decode(&g); err != nil {
			logger.Warn("Skipping undecodable goal record", "key", r.Key, "error", err)
			continue
		}
		if t, err := models.ParseGoalType(r.Type); err == nil {
			g.Type = t
		}
		g.Normalize()
		if err := g.Validate(); err != nil {
			logger.Warn("Skipping invalid goal record", "key", r.Key, "error", err)
			continue
		}
		if g.Type == models.GoalTypeFinancial {
			set.Financial = append(set.Financial, g)
		} else {
			g.Type = models.GoalTypeSkill
			set.Skills = append(set.Skills, g)
		}
	}
	return set, nil
}

// ClearUserGoals removes every goal of userID.
func (s *Store) ClearUserGoals(userID string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.do("clear goals", func(b Backend) error {
		_, err := b.DeleteWhere(CollectionGoals, Filter{UserID: userID})
		return err
	})
}

// LastSyncTime returns userID's sync checkpoint.
func (s *Store) LastSyncTime(userID string) (time.Time, bool, error) {
	var cp syncCheckpoint
	found, err := s.Get(CollectionSyncInfo, userID, &cp)
	if err != nil || !found {
		return time.Time{}, false, err
	}
	return cp.LastSync, true, nil
}

func (s *Store) SaveUserProfile(p models.UserProfile) error {
	if p.Username == "" {
		return fmt.Errorf("%w: profile username is required", pqerrors.ErrValidation)
	}
	return s.Put(CollectionUserData, profileKeyPrefix+p.Username, p)
}

func (s *Store) GetUserProfile(username string) (models.UserProfile, bool, error) {
	var p models.UserProfile
	found, err := s.Get(CollectionUserData, profileKeyPrefix+username, &p)
	return p, found, err
}

// RememberUser adds username to the registered-users record. Logging out never clears it.
func (s *Store) RememberUser(username string) error {
	users, err := s.KnownUsers()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == username {
			return nil
		}
	}
	users = append(users, username)
	sort.Strings(users)
	return s.Put(CollectionUserData, registeredUsersKey, users)
}

// KnownUsers lists every username that has signed in on this device.
func (s *Store) KnownUsers() ([]string, error) {
	var users []string
	if _, err := s.Get(CollectionUserData, registeredUsersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// RecordDiagnostic keeps a login failure for later inspection.
func (s *Store) RecordDiagnostic(f models.LoginFailure) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = s.now().UTC()
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostic: %w", err)
	}
	return s.putRecord(Record{
		Collection: CollectionUserData,
		Key:        diagnosticPrefix + f.Timestamp.Format(time.RFC3339Nano),
		UserID:     f.Username,
		Type:       diagnosticType,
		Value:      data,
	})
}

// Diagnostics returns recorded login failures, oldest first. An empty username returns all.
func (s *Store) Diagnostics(username string) ([]models.LoginFailure, error) {
	recs, err := s.GetAll(CollectionUserData, func(r Record) bool {
		return r.Type == diagnosticType && strings.HasPrefix(r.Key, diagnosticPrefix) &&
			(username == "" || r.UserID == username)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.LoginFailure, 0, len(recs))
	for _, r := range recs {
		var f models.LoginFailure
		if err := r.Decode(&f); err != nil {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AddPendingDelete records a server goal id removed locally but not yet deleted remotely.
func (s *Store) AddPendingDelete(userID string, id int64) error {
	ids, err := s.PendingDeletes(userID)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	return s.Put(CollectionUserData, pendingDeletePrefix+userID, append(ids, id))
}

// PendingDeletes lists goal ids still to be deleted on the server.
func (s *Store) PendingDeletes(userID string) ([]int64, error) {
	var ids []int64
	if _, err := s.Get(CollectionUserData, pendingDeletePrefix+userID, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ResolvePendingDeletes drops done from userID's pending deletions.
func (s *Store) ResolvePendingDeletes(userID string, done []int64) error {
	if len(done) == 0 {
		return nil
	}
	ids, err := s.PendingDeletes(userID)
	if err != nil {
		return err
	}
	resolved := make(map[int64]bool, len(done))
	for _, id := range done {
		resolved[id] = true
	}
	remaining := ids[:0]
	for _, id := range ids {
		if !resolved[id] {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return s.Delete(CollectionUserData, pendingDeletePrefix+userID)
	}
	return s.Put(CollectionUserData, pendingDeletePrefix+userID, remaining)
}
