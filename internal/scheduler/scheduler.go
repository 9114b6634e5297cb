// Package scheduler drives automatic syncs for long-running sessions.
package scheduler

import (
	"context"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/sync"
)

// Syncer is the part of the sync engine the scheduler drives.
type Syncer interface {
	Synchronize(ctx context.Context, force bool) sync.Result
	Online(ctx context.Context) bool
}

// Trigger names why a scheduled sync ran.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerInterval  Trigger = "interval"
	TriggerReconnect Trigger = "reconnect"
	TriggerNudge     Trigger = "nudge"
)

// Event pairs a sync result with what triggered it.
type Event struct {
	Trigger Trigger
	Result  sync.Result
}

// Scheduler syncs shortly after start, periodically while online, and whenever connectivity
// returns. The periodic timer only runs while online.
type Scheduler struct {
	syncer Syncer

	startDelay time.Duration
	interval   time.Duration
	poll       time.Duration

	nudge   chan struct{}
	onEvent func(Event)
}

type Option func(*Scheduler)

// WithIntervals overrides the start delay, periodic interval and connectivity poll.
func WithIntervals(startDelay, interval, poll time.Duration) Option {
	return func(s *Scheduler) {
		s.startDelay = startDelay
		s.interval = interval
		s.poll = poll
	}
}

// OnEvent is called after every scheduled sync.
func OnEvent(fn func(Event)) Option {
	return func(s *Scheduler) { s.onEvent = fn }
}

func New(syncer Syncer, opts ...Option) *Scheduler {
	s := &Scheduler{
		syncer:     syncer,
		startDelay: constants.AutoSyncStartDelay,
		interval:   constants.AutoSyncInterval,
		poll:       constants.ConnectivityPoll,
		nudge:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nudge requests an unforced sync as soon as possible. Extra nudges coalesce.
func (s *Scheduler) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	online := s.syncer.Online(ctx)
	logger.Info("Auto-sync started", "online", online, "interval", s.interval)

	start := time.NewTimer(s.startDelay)
	defer start.Stop()
	poll := time.NewTicker(s.poll)
	defer poll.Stop()

	var periodic *time.Ticker
	var tick <-chan time.Time
	startPeriodic := func() {
		if periodic == nil {
			periodic = time.NewTicker(s.interval)
			tick = periodic.C
		}
	}
	stopPeriodic := func() {
		if periodic != nil {
			periodic.Stop()
			periodic, tick = nil, nil
		}
	}
	defer stopPeriodic()
	if online {
		startPeriodic()
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("Auto-sync stopped")
			return nil
		case <-start.C:
			s.run(ctx, TriggerStartup)
		case <-tick:
			s.run(ctx, TriggerInterval)
		case <-s.nudge:
			s.run(ctx, TriggerNudge)
		case <-poll.C:
			now := s.syncer.Online(ctx)
			switch {
			case now && !online:
				logger.Info("Connectivity restored, syncing")
				startPeriodic()
				s.run(ctx, TriggerReconnect)
			case !now && online:
				logger.Info("Connectivity lost, pausing periodic sync")
				stopPeriodic()
			}
			online = now
		}
	}
}

func (s *Scheduler) run(ctx context.Context, trigger Trigger) {
	res := s.syncer.Synchronize(ctx, false)
	logger.Debug("Scheduled sync", "trigger", trigger, "state", res.State())
	if s.onEvent != nil {
		s.onEvent(Event{Trigger: trigger, Result: res})
	}
}
