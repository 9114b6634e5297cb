package sync

import (
	"fmt"
	"time"

	pqerrors "github.com/julianstephens/progressquest/internal/errors"
)

// State is the terminal state of one sync attempt.
type State string

const (
	StateSuccess         State = "success"
	StateFailed          State = "failed"
	StateQueued          State = "queued"
	StateThrottled       State = "throttled"
	StateOffline         State = "offline"
	StateUnauthenticated State = "unauthenticated"
	StateNoUsername      State = "no_username"
)

// Result describes how a sync attempt ended. Exactly one of the flags is set.
type Result struct {
	Queued          bool
	Throttled       bool
	Offline         bool
	Unauthenticated bool
	NoUsername      bool
	Success         bool

	// Set when throttled.
	LastAttempt time.Time

	// Set on success.
	SyncTime  string
	Created   int
	Updated   int
	Skills    int
	Financial int

	Err error
}

func (r Result) State() State {
	switch {
	case r.Success:
		return StateSuccess
	case r.Queued:
		return StateQueued
	case r.Throttled:
		return StateThrottled
	case r.Offline:
		return StateOffline
	case r.Unauthenticated:
		return StateUnauthenticated
	case r.NoUsername:
		return StateNoUsername
	default:
		return StateFailed
	}
}

// Message is the short status line shown to the user.
func (r Result) Message() string {
	switch r.State() {
	case StateSuccess:
		return fmt.Sprintf("Synced: %d created, %d updated (%d skills, %d financial)",
			r.Created, r.Updated, r.Skills, r.Financial)
	case StateQueued:
		return "Sync already running; another one is queued"
	case StateThrottled:
		return fmt.Sprintf("Sync skipped: last attempt was %s ago", time.Since(r.LastAttempt).Round(time.Second))
	case StateOffline:
		return "Offline: changes are saved locally and will sync later"
	case StateUnauthenticated:
		return "Not signed in: run 'pquest login' to sync"
	case StateNoUsername:
		return "No user on this device: run 'pquest login' to sync"
	default:
		if pqerrors.IsTransient(r.Err) {
			return "Sync incomplete: the server could not be reached"
		}
		return fmt.Sprintf("Sync incomplete: %v", r.Err)
	}
}
