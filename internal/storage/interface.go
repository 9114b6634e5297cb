package storage

import (
	"encoding/json"
	"time"
)

// Collections held by the local store.
const (
	CollectionGoals    = "goals"
	CollectionUserData = "user_data"
	CollectionSyncInfo = "sync_info"
)

// Record is one stored value. UserID and Type are secondary lookup keys; Seq preserves
// insertion order for collections where order matters.
type Record struct {
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	UserID     string    `json:"user_id,omitempty"`
	Type       string    `json:"type,omitempty"`
	Seq        int       `json:"seq,omitempty"`
	Value      []byte    `json:"value"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Decode unmarshals the record value into v.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Value, v)
}

// Filter narrows a scan. Empty fields match anything.
type Filter struct {
	UserID string
	Type   string
}

func (f Filter) Match(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	return true
}

// Writer is the mutating half of a backend, also handed to Batch callbacks.
type Writer interface {
	Put(r Record) error
	Delete(collection, key string) error
	DeleteWhere(collection string, f Filter) (int, error)
}

// Backend is a persistence mechanism for records.
type Backend interface {
	Writer

	// Name identifies the backend in logs and diagnostics.
	Name() string
	Open() error
	Close() error

	// Get returns found=false without an error when the key is absent.
	Get(collection, key string) (Record, bool, error)
	// Scan returns matching records ordered by Seq then Key.
	Scan(collection string, f Filter) ([]Record, error)
}

// Batcher is implemented by backends that can apply several writes atomically.
type Batcher interface {
	Batch(fn func(w Writer) error) error
}
