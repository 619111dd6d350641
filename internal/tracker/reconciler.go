package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/notifications"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
)

// Reconciler reads the orchestrator status of each active job and retires
// jobs that reached a terminal status.
type Reconciler struct {
	registry *Registry
	orch     orchestrator.Client
	progress *ProgressTracker
	events   events.Publisher
	notifier notifications.Notifier
	logger   *slog.Logger
	now      func() time.Time

	attempts       uint
	retryDelay     time.Duration
	stallThreshold int

	mu       sync.Mutex
	failures map[string]int // by job ID
}

// Reconcile processes jobs in order. Failures for one job never affect the
// others; a failed read leaves the job registered for the next tick.
func (r *Reconciler) Reconcile(ctx context.Context, jobs []Job) {
	for _, job := range jobs {
		if ctx.Err() != nil {
			return
		}
		r.reconcile(ctx, job)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, job Job) {
	r.progress.Update(ctx, job)

	var status *orchestrator.StatusResponse
	err := retry.Do(
		func() error {
			var err error
			status, err = r.orch.Status(ctx, job.BookID)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.retryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		r.recordFailure(job, err)
		return
	}
	r.recordSuccess(job)

	if !status.Terminal() {
		r.logger.Debug("job still running",
			"book_id", job.BookID,
			"lookup", status.Status,
			"processing_status", status.ProcessingStatus,
		)
		return
	}

	// The job may have been retired while the read was in flight.
	if !r.registry.RemoveJob(job.BookID, job.ID) {
		r.logger.Debug("discarding terminal status for retired job", "book_id", job.BookID)
		return
	}
	r.clearFailures(job)

	r.events.Publish(events.RowIdle, job.BookID, nil)
	r.progress.Dismiss(job.BookID)

	elapsed := r.now().Sub(job.StartTime)
	r.events.Publish(events.JobCompleted, job.BookID, map[string]any{
		"title":           job.Title,
		"status":          status.ProcessingStatus,
		"songs_extracted": status.SongsExtracted,
		"elapsed_ms":      elapsed.Milliseconds(),
	})
	r.logger.Info("reprocessing finished",
		"book_id", job.BookID,
		"status", status.ProcessingStatus,
		"songs_extracted", status.SongsExtracted,
		"elapsed", elapsed.Round(time.Second).String(),
	)

	err = r.notifier.NotifyJobFinished(ctx, notifications.Completion{
		BookID:         job.BookID,
		Title:          job.Title,
		Status:         status.ProcessingStatus,
		SongsExtracted: status.SongsExtracted,
		Elapsed:        elapsed,
	})
	if err != nil {
		r.logger.Warn("completion notification failed", "book_id", job.BookID, "error", err)
	}
}

func (r *Reconciler) recordFailure(job Job, err error) {
	r.mu.Lock()
	r.failures[job.ID]++
	n := r.failures[job.ID]
	r.mu.Unlock()

	r.logger.Warn("status check failed", "book_id", job.BookID, "failures", n, "error", err)

	if r.stallThreshold > 0 && n == r.stallThreshold {
		r.events.Publish(events.JobStalled, job.BookID, map[string]any{
			"failures": n,
			"error":    err.Error(),
		})
	}
}

func (r *Reconciler) recordSuccess(job Job) {
	r.mu.Lock()
	n := r.failures[job.ID]
	delete(r.failures, job.ID)
	r.mu.Unlock()

	if r.stallThreshold > 0 && n >= r.stallThreshold {
		r.events.Publish(events.JobRecovered, job.BookID, map[string]any{"failures": n})
	}
}

func (r *Reconciler) clearFailures(job Job) {
	r.mu.Lock()
	delete(r.failures, job.ID)
	r.mu.Unlock()
}

// Failures returns the current consecutive failure count for a job.
func (r *Reconciler) Failures(jobID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures[jobID]
}
