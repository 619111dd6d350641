package tracker

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_FollowsRegistry(t *testing.T) {
	r := NewRegistry()
	s := NewScheduler(SchedulerConfig{Registry: r, Interval: time.Hour, Logger: quietLogger()})

	if s.State() != Idle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}
	s.Ensure()
	if s.State() != Idle {
		t.Fatal("Ensure() started polling with no jobs")
	}

	r.Admit(Job{ID: "1", BookID: "a"})
	if s.State() != Active {
		t.Fatalf("state after admit = %v, want active", s.State())
	}
	r.Admit(Job{ID: "2", BookID: "b"})

	r.Remove("a")
	if s.State() != Active {
		t.Fatal("stopped while jobs remain")
	}
	r.Remove("b")
	if s.State() != Idle {
		t.Fatalf("state after last removal = %v, want idle", s.State())
	}
}

func TestScheduler_AdmitDuringRemovalKeepsPolling(t *testing.T) {
	r := NewRegistry()
	var admitted atomic.Bool
	// Registered before the scheduler, so this admit lands after the removal
	// released the registry lock but before the scheduler hears about it.
	r.Observe(func(size int) {
		if size == 0 && admitted.CompareAndSwap(false, true) {
			if err := r.Admit(Job{ID: "2", BookID: "b"}); err != nil {
				t.Errorf("Admit() error = %v", err)
			}
		}
	})
	s := NewScheduler(SchedulerConfig{Registry: r, Interval: time.Hour, Logger: quietLogger()})

	r.Admit(Job{ID: "1", BookID: "a"})
	r.Remove("a")

	if !admitted.Load() {
		t.Fatal("second job was not admitted")
	}
	if r.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", r.Size())
	}
	if s.State() != Active {
		t.Errorf("state = %v with a registered job, want active", s.State())
	}
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Registry: NewRegistry()})
	if s.Interval() != 5*time.Second {
		t.Errorf("Interval() = %v, want 5s", s.Interval())
	}
	s.SetInterval(0)
	if s.Interval() != DefaultPollInterval {
		t.Errorf("SetInterval(0) gave %v", s.Interval())
	}
}

func TestScheduler_TickOnEmptyRegistry(t *testing.T) {
	var calls atomic.Int32
	s := NewScheduler(SchedulerConfig{
		Registry: NewRegistry(),
		Interval: time.Hour,
		Logger:   quietLogger(),
		Tick:     func(context.Context) { calls.Add(1) },
	})

	if s.Tick(t.Context()) {
		t.Error("Tick() ran on empty registry")
	}
	if calls.Load() != 0 {
		t.Errorf("tick func called %d times", calls.Load())
	}
	if s.State() != Idle {
		t.Errorf("state = %v, want idle", s.State())
	}
}

func TestScheduler_TickStopsWhenWorkEmptiesRegistry(t *testing.T) {
	r := NewRegistry()
	s := NewScheduler(SchedulerConfig{
		Registry: r,
		Interval: time.Hour,
		Logger:   quietLogger(),
		Tick: func(context.Context) {
			for _, job := range r.Jobs() {
				r.Remove(job.BookID)
			}
		},
	})
	r.Admit(Job{ID: "1", BookID: "a"})

	if !s.Tick(t.Context()) {
		t.Fatal("Tick() skipped")
	}
	if !r.IsEmpty() || s.State() != Idle {
		t.Errorf("IsEmpty() = %v, state = %v", r.IsEmpty(), s.State())
	}
}

func TestScheduler_SkipsOverlappingTick(t *testing.T) {
	r := NewRegistry()
	started := make(chan struct{})
	release := make(chan struct{})
	s := NewScheduler(SchedulerConfig{
		Registry: r,
		Interval: time.Hour,
		Logger:   quietLogger(),
		Tick: func(context.Context) {
			close(started)
			<-release
		},
	})
	r.Admit(Job{ID: "1", BookID: "a"})

	done := make(chan bool)
	go func() { done <- s.Tick(context.Background()) }()
	<-started

	if s.Tick(t.Context()) {
		t.Error("overlapping Tick() ran")
	}
	if s.SkippedTicks() != 1 {
		t.Errorf("SkippedTicks() = %d, want 1", s.SkippedTicks())
	}

	close(release)
	if !<-done {
		t.Error("first Tick() reported skipped")
	}
	if s.Ticks() != 1 {
		t.Errorf("Ticks() = %d, want 1", s.Ticks())
	}
}

func TestScheduler_TimerDrivesTicks(t *testing.T) {
	r := NewRegistry()
	ticked := make(chan struct{}, 10)
	s := NewScheduler(SchedulerConfig{
		Registry: r,
		Interval: 10 * time.Millisecond,
		Logger:   quietLogger(),
		Tick: func(context.Context) {
			select {
			case ticked <- struct{}{}:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	r.Admit(Job{ID: "1", BookID: "a"})

	for range 2 {
		select {
		case <-ticked:
		case <-time.After(2 * time.Second):
			t.Fatal("timer did not fire")
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if s.State() != Idle {
		t.Errorf("state after cancel = %v, want idle", s.State())
	}
}
