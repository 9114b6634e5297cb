package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-ps"
)

type fakeProcess struct {
	pid int
	exe string
}

func (p fakeProcess) Pid() int           { return p.pid }
func (p fakeProcess) PPid() int          { return 1 }
func (p fakeProcess) Executable() string { return p.exe }

func withProcesses(t *testing.T, self int, procs map[int]string) {
	t.Helper()
	origFind, origPid := findProcessFunc, getpidFunc
	findProcessFunc = func(pid int) (ps.Process, error) {
		if exe, ok := procs[pid]; ok {
			return fakeProcess{pid: pid, exe: exe}, nil
		}
		return nil, nil
	}
	getpidFunc = func() int { return self }
	t.Cleanup(func() {
		findProcessFunc, getpidFunc = origFind, origPid
	})
}

func TestAcquireAndRelease(t *testing.T) {
	withProcesses(t, 100, map[int]string{100: "pquest"})
	path := filepath.Join(t.TempDir(), "watch.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	h, live, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if h.PID != 100 || !live {
		t.Errorf("unexpected holder %+v live=%v", h, live)
	}

	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("lockfile should be removed")
	}
}

func TestAcquireHeldByLiveWatcher(t *testing.T) {
	withProcesses(t, 200, map[int]string{100: "pquest"})
	path := filepath.Join(t.TempDir(), "watch.lock")
	if err := os.WriteFile(path, []byte("100|pquest|1700000000"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestAcquireReplacesStaleLock(t *testing.T) {
	tests := []struct {
		name    string
		content string
		procs   map[int]string
	}{
		{"dead process", "100|pquest|1700000000", map[int]string{}},
		{"reused pid", "100|pquest|1700000000", map[int]string{100: "bash"}},
		{"malformed", "garbage", map[int]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withProcesses(t, 300, tt.procs)
			path := filepath.Join(t.TempDir(), "watch.lock")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			lock, err := Acquire(path)
			if err != nil {
				t.Fatalf("Acquire failed: %v", err)
			}
			defer lock.Release()
			h, _, _ := Read(path)
			if h.PID != 300 {
				t.Errorf("expected lock owned by 300, got %d", h.PID)
			}
		})
	}
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	withProcesses(t, 100, map[int]string{100: "pquest"})
	path := filepath.Join(t.TempDir(), "watch.lock")
	lock, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("555|pquest|1700000000"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := lock.Release(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("foreign lockfile should be left alone")
	}
}

func TestParse(t *testing.T) {
	for _, bad := range []string{"", "1|2", "x|pquest|1", "-1|pquest|1", "1|pquest|x"} {
		if _, err := parse(bad); err == nil {
			t.Errorf("parse(%q) expected error", bad)
		}
	}
	h, err := parse("42|pquest|1700000000\n")
	if err != nil || h.PID != 42 || h.Executable != "pquest" {
		t.Errorf("parse = %+v, %v", h, err)
	}
}
