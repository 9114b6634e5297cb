package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/progressquest/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the requested key
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Get reads the secret stored under key in the application's keyring service.
func Get(key string) (string, error) {
	v, err := keyring.Get(constants.AppName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

// Set stores value under key, replacing any previous value.
func Set(key, value string) error {
	if err := keyring.Set(constants.AppName, key, value); err != nil {
		return fmt.Errorf("%w: failed to store %s: %v", ErrKeyringUnavailable, key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func Delete(key string) error {
	err := keyring.Delete(constants.AppName, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: failed to delete %s: %v", ErrKeyringUnavailable, key, err)
	}
	return nil
}

// GetConnectionString retrieves the PostgreSQL connection string for the local store.
func GetConnectionString() (string, error) {
	return Get(constants.DefaultKeyringUser)
}

// SetConnectionString stores the PostgreSQL connection string for the local store.
func SetConnectionString(connStr string) error {
	if connStr == "" {
		return errors.New("connection string cannot be empty")
	}
	return Set(constants.DefaultKeyringUser, connStr)
}

// DeleteConnectionString removes the stored connection string.
func DeleteConnectionString() error {
	return Delete(constants.DefaultKeyringUser)
}

// IsAvailable is a best-effort probe: a read that ends in ErrNotFound still proves the keyring works.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
