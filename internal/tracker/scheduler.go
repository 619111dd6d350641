package tracker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPollInterval is the cadence of status polling.
const DefaultPollInterval = 5 * time.Second

// State is the polling scheduler state.
type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// TickFunc performs one reconciliation pass.
type TickFunc func(ctx context.Context)

// Scheduler runs a single shared timer while the registry is non-empty.
//
// It starts when an admit makes the registry non-empty (or on Ensure while
// jobs exist) and stops as soon as the registry empties, either through a
// removal or at the start of a tick. Ticks never overlap: a timer fire that
// lands while the previous tick is still running is skipped.
type Scheduler struct {
	mu       sync.Mutex
	registry *Registry
	tick     TickFunc
	interval time.Duration
	logger   *slog.Logger

	state  State
	cancel context.CancelFunc
	base   context.Context

	ticking atomic.Bool
	ticks   atomic.Int64
	skipped atomic.Int64
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Registry *Registry
	Tick     TickFunc
	Interval time.Duration // default 5s
	Logger   *slog.Logger
}

// NewScheduler creates an idle scheduler bound to a registry.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	tick := cfg.Tick
	if tick == nil {
		tick = func(context.Context) {}
	}

	s := &Scheduler{
		registry: cfg.Registry,
		tick:     tick,
		interval: interval,
		logger:   logger,
		base:     context.Background(),
	}
	cfg.Registry.Observe(s.onRegistryChange)
	return s
}

// onRegistryChange ignores the reported size: by the time it runs another
// mutation may already have changed it.
func (s *Scheduler) onRegistryChange(int) {
	if s.registry.IsEmpty() {
		s.stopIfEmpty()
		return
	}
	s.Ensure()
}

// Ensure starts the timer if jobs exist and it is not already running.
func (s *Scheduler) Ensure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Active || s.registry.IsEmpty() {
		return
	}
	if s.base.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.state = Active
	go s.loop(ctx, s.interval)

	s.logger.Info("polling started", "interval", s.interval.String(), "jobs", s.registry.Size())
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// stopIfEmpty stops the timer only if the registry is still empty once the
// scheduler lock is held, so it cannot undo an Ensure from a concurrent admit.
func (s *Scheduler) stopIfEmpty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.registry.IsEmpty() {
		return
	}
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.state == Idle {
		return
	}
	s.cancel()
	s.cancel = nil
	s.state = Idle
	s.logger.Info("polling stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.ticking.Load() {
				s.skipped.Add(1)
				s.logger.Debug("previous tick still running, skipping")
				continue
			}
			// Ticks run against the scheduler's base context so that a stop
			// triggered by the tick's own removals does not cancel its
			// remaining side effects.
			go s.Tick(s.baseContext())
		}
	}
}

func (s *Scheduler) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Tick performs one unit of work. It returns false when skipped because
// another tick is running or because the registry was empty, in which case
// the scheduler goes idle.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.ticking.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return false
	}
	defer s.ticking.Store(false)

	if s.registry.IsEmpty() {
		s.stopIfEmpty()
		return false
	}

	s.ticks.Add(1)
	s.tick(ctx)

	if s.registry.IsEmpty() {
		s.stopIfEmpty()
	}
	return true
}

// Run binds the scheduler to ctx, starting polling if jobs are already
// registered, and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.Ensure()
	<-ctx.Done()
	s.stop()
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetInterval changes the polling interval. It applies the next time the
// scheduler starts.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultPollInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
}

// Interval returns the configured polling interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Ticks returns the number of ticks that ran.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// SkippedTicks returns the number of ticks skipped because one was running.
func (s *Scheduler) SkippedTicks() int64 { return s.skipped.Load() }
