package scheduler

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/julianstephens/progressquest/internal/sync"
)

type fakeSyncer struct {
	mu     gosync.Mutex
	online bool
	calls  int
}

func (f *fakeSyncer) Synchronize(ctx context.Context, force bool) sync.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return sync.Result{Success: true}
}

func (f *fakeSyncer) Online(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeSyncer) setOnline(v bool) {
	f.mu.Lock()
	f.online = v
	f.mu.Unlock()
}

// collect runs the scheduler until want events arrive or the deadline passes.
func collect(t *testing.T, events chan Event, want int) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(5 * time.Second)
	for len(got) < want {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(got), want)
		}
	}
	return got
}

func start(t *testing.T, f *fakeSyncer, opts ...Option) (*Scheduler, chan Event) {
	t.Helper()
	events := make(chan Event, 16)
	opts = append(opts, OnEvent(func(ev Event) { events <- ev }))
	s := New(f, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s, events
}

func TestStartupSync(t *testing.T) {
	f := &fakeSyncer{online: true}
	_, events := start(t, f, WithIntervals(10*time.Millisecond, time.Hour, time.Hour))

	got := collect(t, events, 1)
	if got[0].Trigger != TriggerStartup {
		t.Errorf("trigger = %s, want startup", got[0].Trigger)
	}
}

func TestPeriodicSyncWhileOnline(t *testing.T) {
	f := &fakeSyncer{online: true}
	_, events := start(t, f, WithIntervals(time.Hour, 10*time.Millisecond, time.Hour))

	for _, ev := range collect(t, events, 3) {
		if ev.Trigger != TriggerInterval {
			t.Errorf("trigger = %s, want interval", ev.Trigger)
		}
	}
}

func TestNoPeriodicSyncWhileOffline(t *testing.T) {
	f := &fakeSyncer{online: false}
	_, events := start(t, f, WithIntervals(time.Hour, 5*time.Millisecond, time.Hour))

	select {
	case ev := <-events:
		t.Fatalf("unexpected %s sync while offline", ev.Trigger)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestReconnectTriggersSync(t *testing.T) {
	f := &fakeSyncer{online: false}
	_, events := start(t, f, WithIntervals(time.Hour, time.Hour, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)
	f.setOnline(true)

	got := collect(t, events, 1)
	if got[0].Trigger != TriggerReconnect {
		t.Errorf("trigger = %s, want reconnect", got[0].Trigger)
	}
}

func TestNudge(t *testing.T) {
	f := &fakeSyncer{online: true}
	s, events := start(t, f, WithIntervals(time.Hour, time.Hour, time.Hour))

	s.Nudge()
	s.Nudge()
	got := collect(t, events, 1)
	if got[0].Trigger != TriggerNudge {
		t.Errorf("trigger = %s, want nudge", got[0].Trigger)
	}
}
