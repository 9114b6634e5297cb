package vault

import (
	"errors"

	"github.com/julianstephens/progressquest/internal/keyring"
)

// ErrNotFound is returned by a Scope that holds nothing under the key.
var ErrNotFound = errors.New("not found in scope")

// Scope is one place session material can live. Each scope may be cleared externally at any
// time, so every read must tolerate absence.
type Scope interface {
	Name() string
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringScope is the durable scope, backed by the OS keyring.
type KeyringScope struct {
	prefix string
}

func NewKeyringScope() *KeyringScope {
	return &KeyringScope{prefix: "session."}
}

func (k *KeyringScope) Name() string { return "durable" }

func (k *KeyringScope) Get(key string) (string, error) {
	v, err := keyring.Get(k.prefix + key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

func (k *KeyringScope) Set(key, value string) error {
	return keyring.Set(k.prefix+key, value)
}

func (k *KeyringScope) Delete(key string) error {
	err := keyring.Delete(k.prefix + key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
