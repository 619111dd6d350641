// Package tracker drives reprocessing of books through the external
// orchestrator: it admits at most one job per book, polls the orchestrator on
// a fixed cadence while jobs are active, and retires jobs that reach a
// terminal status.
package tracker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadyActive is returned when a book already has a reprocessing job.
var ErrAlreadyActive = errors.New("reprocessing already active")

// Job is one active reprocessing attempt. Jobs are immutable once admitted.
type Job struct {
	ID              string    `json:"id" yaml:"id"`
	BookID          string    `json:"book_id" yaml:"book_id"`
	Title           string    `json:"title" yaml:"title"`
	SourcePDF       string    `json:"source_pdf" yaml:"source_pdf"`
	ExecutionRef    string    `json:"execution_ref,omitempty" yaml:"execution_ref,omitempty"`
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	UseManualSplits bool      `json:"use_manual_splits" yaml:"use_manual_splits"`
}

// Registry maps book IDs to their active job. It holds no timers; observers
// registered with Observe are told the new size after every mutation.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]Job
	order     []string
	observers []func(size int)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Observe registers fn to be called after each admit or effective removal.
// fn runs outside the registry lock.
func (r *Registry) Observe(fn func(size int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Admit inserts job. It never replaces an existing job for the same book.
func (r *Registry) Admit(job Job) error {
	r.mu.Lock()
	if _, ok := r.jobs[job.BookID]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyActive, job.BookID)
	}
	r.jobs[job.BookID] = job
	r.order = append(r.order, job.BookID)
	size, observers := len(r.jobs), r.observers
	r.mu.Unlock()

	notify(observers, size)
	return nil
}

// Get returns the active job for a book.
func (r *Registry) Get(bookID string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[bookID]
	return job, ok
}

// Remove drops the job for a book. Removing an absent book is a no-op.
func (r *Registry) Remove(bookID string) {
	r.remove(bookID, "")
}

// RemoveJob drops the job for a book only if it is still the job with jobID.
// It reports whether a job was removed, so callers holding a stale job can
// tell that it was already retired or replaced.
func (r *Registry) RemoveJob(bookID, jobID string) bool {
	return r.remove(bookID, jobID)
}

func (r *Registry) remove(bookID, jobID string) bool {
	r.mu.Lock()
	job, ok := r.jobs[bookID]
	if !ok || (jobID != "" && job.ID != jobID) {
		r.mu.Unlock()
		return false
	}
	delete(r.jobs, bookID)
	for i, id := range r.order {
		if id == bookID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	size, observers := len(r.jobs), r.observers
	r.mu.Unlock()

	notify(observers, size)
	return true
}

// Contains reports whether job is still the active job for its book.
func (r *Registry) Contains(job Job) bool {
	current, ok := r.Get(job.BookID)
	return ok && current.ID == job.ID
}

// IsEmpty reports whether no jobs are active.
func (r *Registry) IsEmpty() bool {
	return r.Size() == 0
}

// Size returns the number of active jobs.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Jobs returns a snapshot of active jobs in admission order.
func (r *Registry) Jobs() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id])
	}
	return out
}

func notify(observers []func(int), size int) {
	for _, fn := range observers {
		fn(size)
	}
}
