// Package lockfile keeps a single pquest watcher running per user.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/logger"
)

var (
	findProcessFunc = ps.FindProcess
	getpidFunc      = os.Getpid
)

// ErrLocked means a live pquest process holds the lock.
var ErrLocked = errors.New("another watcher is already running")

// Holder describes the lock owner as written to the lockfile: pid|executable|started.
type Holder struct {
	PID        int
	Executable string
	Started    time.Time
}

func (h Holder) String() string {
	return fmt.Sprintf("%d|%s|%d", h.PID, h.Executable, h.Started.Unix())
}

func parse(content string) (Holder, error) {
	parts := strings.Split(strings.TrimSpace(content), "|")
	if len(parts) != 3 {
		return Holder{}, errors.New("lockfile is malformed")
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		return Holder{}, errors.New("invalid process ID in lockfile")
	}
	started, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Holder{}, errors.New("invalid start time in lockfile")
	}
	return Holder{PID: pid, Executable: parts[1], Started: time.Unix(started, 0)}, nil
}

// Read returns the recorded holder and whether that process is still a live pquest.
func Read(path string) (Holder, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, false, err
	}
	h, err := parse(string(content))
	if err != nil {
		return Holder{}, false, err
	}
	return h, alive(h), nil
}

func alive(h Holder) bool {
	process, err := findProcessFunc(h.PID)
	if err != nil || process == nil {
		return false
	}
	return strings.HasPrefix(process.Executable(), constants.BinaryName)
}

// Lock is a held lockfile.
type Lock struct {
	path   string
	holder Holder
}

// Acquire takes the lock at path, replacing it when its holder is gone or is not pquest.
func Acquire(path string) (*Lock, error) {
	if h, live, err := Read(path); err == nil {
		if live && h.PID != getpidFunc() {
			return nil, fmt.Errorf("%w (pid %d since %s)", ErrLocked, h.PID, h.Started.Format(time.RFC3339))
		}
		logger.Warn("Removing stale lockfile", "path", path, "pid", h.PID)
		_ = os.Remove(path)
	} else if !os.IsNotExist(err) {
		logger.Warn("Replacing unreadable lockfile", "path", path, "error", err)
		_ = os.Remove(path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	exe := constants.BinaryName
	if p, err := os.Executable(); err == nil {
		exe = filepath.Base(p)
	}
	holder := Holder{PID: getpidFunc(), Executable: exe, Started: time.Now()}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to create lockfile: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(holder.String()); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to write lockfile: %w", err)
	}
	return &Lock{path: path, holder: holder}, nil
}

func (l *Lock) Path() string {
	return l.path
}

// Release removes the lockfile if this process still owns it.
func (l *Lock) Release() error {
	h, _, err := Read(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if h.PID != l.holder.PID {
		return nil
	}
	return os.Remove(l.path)
}
