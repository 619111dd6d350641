package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/notifications"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
)

// ErrInvalidRequest is returned for submissions missing a book ID.
var ErrInvalidRequest = errors.New("invalid reprocess request")

// SubmissionError is returned when the orchestrator did not start a job.
// The job is never registered in that case.
type SubmissionError struct {
	BookID  string
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reprocess %s: %v", e.BookID, e.Err)
	}
	msg := e.Message
	if msg == "" {
		msg = "orchestrator did not start the job"
	}
	return fmt.Sprintf("reprocess %s: %s", e.BookID, msg)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// SubmitRequest asks for a book to be reprocessed.
type SubmitRequest struct {
	BookID    string
	SourcePDF string
	Force     bool
	Title     string // optional; resolved from TitleFunc when empty
}

// Config configures a Tracker.
type Config struct {
	Orchestrator orchestrator.Client
	Notifier     notifications.Notifier
	Events       events.Publisher
	Logger       *slog.Logger

	PollInterval   time.Duration // default 5s
	StatusAttempts uint          // status reads per job per tick, default 1
	RetryDelay     time.Duration // between status attempts, default 200ms
	StallThreshold int           // consecutive failures before job_stalled, 0 disables

	// TitleFunc resolves a display title for a book when the request has none.
	TitleFunc func(bookID string) string
}

// Tracker ties the registry, scheduler, reconciler and progress views
// together behind the submission flow.
type Tracker struct {
	registry   *Registry
	scheduler  *Scheduler
	reconciler *Reconciler
	progress   *ProgressTracker

	orch   orchestrator.Client
	events events.Publisher
	titles func(string) string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a tracker with an idle scheduler.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := cfg.Events
	if pub == nil {
		pub = events.NewLog(0)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.LogNotifier{Logger: logger}
	}
	attempts := cfg.StatusAttempts
	if attempts == 0 {
		// retry-go treats zero attempts as unlimited
		attempts = 1
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	titles := cfg.TitleFunc
	if titles == nil {
		titles = func(bookID string) string { return bookID }
	}

	registry := NewRegistry()
	progress := newProgressTracker(registry, cfg.Orchestrator, pub, logger)
	reconciler := &Reconciler{
		registry:       registry,
		orch:           cfg.Orchestrator,
		progress:       progress,
		events:         pub,
		notifier:       notifier,
		logger:         logger,
		now:            time.Now,
		attempts:       attempts,
		retryDelay:     retryDelay,
		stallThreshold: cfg.StallThreshold,
		failures:       make(map[string]int),
	}

	t := &Tracker{
		registry:   registry,
		reconciler: reconciler,
		progress:   progress,
		orch:       cfg.Orchestrator,
		events:     pub,
		titles:     titles,
		logger:     logger,
		now:        time.Now,
		pending:    make(map[string]struct{}),
	}
	t.scheduler = NewScheduler(SchedulerConfig{
		Registry: registry,
		Interval: cfg.PollInterval,
		Logger:   logger,
		Tick: func(ctx context.Context) {
			reconciler.Reconcile(ctx, registry.Jobs())
		},
	})
	return t
}

// Submit asks the orchestrator to reprocess a book and, once it confirms the
// start, registers the job and starts polling.
func (t *Tracker) Submit(ctx context.Context, req SubmitRequest) (Job, error) {
	bookID := strings.TrimSpace(req.BookID)
	if bookID == "" {
		return Job{}, fmt.Errorf("%w: book_id is required", ErrInvalidRequest)
	}

	if err := t.reserve(bookID); err != nil {
		return Job{}, err
	}
	defer t.release(bookID)

	logger := t.logger.With("book_id", bookID)

	resp, err := t.orch.Reprocess(ctx, orchestrator.ReprocessRequest{
		BookID:    bookID,
		SourcePDF: req.SourcePDF,
		Force:     req.Force,
	})
	if err != nil {
		t.events.Publish(events.SubmissionFailed, bookID, map[string]any{"error": err.Error()})
		logger.Warn("reprocess submission failed", "error", err)
		return Job{}, &SubmissionError{BookID: bookID, Err: err}
	}
	if resp.Status != orchestrator.SubmitStarted {
		t.events.Publish(events.SubmissionFailed, bookID, map[string]any{"error": resp.Message})
		logger.Warn("reprocess rejected", "status", resp.Status, "message", resp.Message)
		return Job{}, &SubmissionError{BookID: bookID, Message: resp.Message}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = t.titles(bookID)
	}
	job := Job{
		ID:              uuid.NewString(),
		BookID:          bookID,
		Title:           title,
		SourcePDF:       req.SourcePDF,
		ExecutionRef:    resp.ExecutionARN,
		StartTime:       t.now(),
		UseManualSplits: resp.UseManualSplits,
	}

	// Admit before touching row or progress state; a rejected admit belongs to
	// another job's row.
	if err := t.registry.Admit(job); err != nil {
		return Job{}, err
	}
	t.events.Publish(events.RowProcessing, bookID, map[string]any{"job_id": job.ID})
	t.progress.Show(job)

	logger.Info("reprocessing started",
		"job_id", job.ID,
		"execution_ref", job.ExecutionRef,
		"use_manual_splits", job.UseManualSplits,
	)
	return job, nil
}

// reserve claims bookID for an in-flight submission so that two concurrent
// submissions for the same book cannot both reach the orchestrator.
func (t *Tracker) reserve(bookID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[bookID]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, bookID)
	}
	if _, ok := t.registry.Get(bookID); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyActive, bookID)
	}
	t.pending[bookID] = struct{}{}
	return nil
}

func (t *Tracker) release(bookID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, bookID)
}

// Active returns active jobs in admission order.
func (t *Tracker) Active() []Job {
	return t.registry.Jobs()
}

// Job returns the active job for a book.
func (t *Tracker) Job(bookID string) (Job, bool) {
	return t.registry.Get(bookID)
}

// Progress returns the progress view of an active job.
func (t *Tracker) Progress(bookID string) (View, bool) {
	return t.progress.Get(bookID)
}

// Ensure starts polling if jobs are registered and the scheduler is idle.
func (t *Tracker) Ensure() {
	t.scheduler.Ensure()
}

// Tick runs one reconciliation pass immediately.
func (t *Tracker) Tick(ctx context.Context) bool {
	return t.scheduler.Tick(ctx)
}

// Run polls until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	t.scheduler.Run(ctx)
}

// State returns the scheduler state.
func (t *Tracker) State() State {
	return t.scheduler.State()
}

// Stalled reports whether a job's consecutive status failures reached the
// stall threshold.
func (t *Tracker) Stalled(job Job) bool {
	n := t.reconciler.Failures(job.ID)
	return t.reconciler.stallThreshold > 0 && n >= t.reconciler.stallThreshold
}

// SetPollInterval changes the polling interval for the next scheduler start.
func (t *Tracker) SetPollInterval(d time.Duration) {
	t.scheduler.SetInterval(d)
}

// Scheduler exposes the scheduler for diagnostics.
func (t *Tracker) Scheduler() *Scheduler {
	return t.scheduler
}
