package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/julianstephens/progressquest/internal/constants"
)

// SessionScope keeps values in a small JSON file under the per-user runtime directory, which
// the OS empties at logout or reboot.
type SessionScope struct {
	path string
	mu   sync.Mutex
}

func NewSessionScope(path string) *SessionScope {
	return &SessionScope{path: path}
}

// DefaultSessionPath is $XDG_RUNTIME_DIR/progressquest/session.json, or a per-uid directory
// under the temp dir when no runtime dir is set.
func DefaultSessionPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, constants.AppName, constants.SessionFileName)
	}
	return filepath.Join(os.TempDir(), constants.AppName+"-"+strconv.Itoa(os.Getuid()), constants.SessionFileName)
}

func (s *SessionScope) Name() string { return "session" }

func (s *SessionScope) Path() string { return s.path }

func (s *SessionScope) read() (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return values, nil
}

func (s *SessionScope) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

func (s *SessionScope) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *SessionScope) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		// A corrupt session file is replaced rather than blocking writes.
		values = map[string]string{}
	}
	values[key] = value
	return s.write(values)
}

func (s *SessionScope) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.write(values)
}
