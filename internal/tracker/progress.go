package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
)

// View is the step-level progress of one active job.
type View struct {
	BookID       string              `json:"book_id" yaml:"book_id"`
	ExecutionRef string              `json:"execution_ref" yaml:"execution_ref"`
	Status       string              `json:"status" yaml:"status"`
	Steps        []orchestrator.Step `json:"steps" yaml:"steps"`
	UpdatedAt    time.Time           `json:"updated_at,omitzero" yaml:"updated_at,omitempty"`
	LastError    string              `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Headers implements api.Tabular.
func (v View) Headers() []string {
	return []string{"STEP", "STATUS", "STARTED", "FINISHED"}
}

// Rows implements api.Tabular.
func (v View) Rows() [][]string {
	rows := make([][]string, 0, len(v.Steps))
	for _, s := range v.Steps {
		rows = append(rows, []string{s.Name, s.Status, formatTime(s.StartedAt), formatTime(s.FinishedAt)})
	}
	return rows
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.TimeOnly)
}

// ProgressTracker keeps a view per active job with an execution reference.
// A view only exists while its job is registered.
type ProgressTracker struct {
	mu       sync.Mutex
	views    map[string]*View
	registry *Registry
	orch     orchestrator.Client
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
}

func newProgressTracker(registry *Registry, orch orchestrator.Client, pub events.Publisher, logger *slog.Logger) *ProgressTracker {
	return &ProgressTracker{
		views:    make(map[string]*View),
		registry: registry,
		orch:     orch,
		events:   pub,
		logger:   logger,
		now:      time.Now,
	}
}

// Show creates the view for a newly admitted job.
func (p *ProgressTracker) Show(job Job) {
	if job.ExecutionRef == "" {
		return
	}
	p.mu.Lock()
	if _, ok := p.views[job.BookID]; ok {
		p.mu.Unlock()
		return
	}
	p.views[job.BookID] = &View{BookID: job.BookID, ExecutionRef: job.ExecutionRef}
	p.mu.Unlock()

	p.events.Publish(events.ProgressShown, job.BookID, map[string]any{"execution_ref": job.ExecutionRef})
}

// Update fetches execution detail for job. Responses for jobs that are no
// longer registered are discarded.
func (p *ProgressTracker) Update(ctx context.Context, job Job) {
	if job.ExecutionRef == "" || !p.registry.Contains(job) {
		return
	}

	exec, err := p.orch.Execution(ctx, job.ExecutionRef)

	if !p.registry.Contains(job) {
		p.logger.Debug("discarding progress for retired job", "book_id", job.BookID)
		return
	}

	p.mu.Lock()
	view, ok := p.views[job.BookID]
	if !ok {
		view = &View{BookID: job.BookID, ExecutionRef: job.ExecutionRef}
		p.views[job.BookID] = view
	}
	if err != nil {
		view.LastError = err.Error()
		p.mu.Unlock()
		p.logger.Warn("progress update failed", "book_id", job.BookID, "error", err)
		return
	}
	changed := !ok || view.Status != exec.Status || !sameSteps(view.Steps, exec.Steps)
	view.Status = exec.Status
	view.Steps = append([]orchestrator.Step(nil), exec.Steps...)
	view.UpdatedAt = p.now()
	view.LastError = ""
	completed := 0
	for _, s := range exec.Steps {
		if s.FinishedAt != nil {
			completed++
		}
	}
	p.mu.Unlock()

	if !ok {
		p.events.Publish(events.ProgressShown, job.BookID, map[string]any{"execution_ref": job.ExecutionRef})
	}
	if changed {
		p.events.Publish(events.ProgressUpdated, job.BookID, map[string]any{
			"status":          exec.Status,
			"steps":           len(exec.Steps),
			"steps_completed": completed,
		})
	}
}

// Dismiss removes the view for a book, if any.
func (p *ProgressTracker) Dismiss(bookID string) {
	p.mu.Lock()
	_, ok := p.views[bookID]
	delete(p.views, bookID)
	p.mu.Unlock()

	if ok {
		p.events.Publish(events.ProgressHidden, bookID, nil)
	}
}

// Get returns a copy of the view for a book.
func (p *ProgressTracker) Get(bookID string) (View, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	view, ok := p.views[bookID]
	if !ok {
		return View{}, false
	}
	out := *view
	out.Steps = append([]orchestrator.Step(nil), view.Steps...)
	return out, true
}

func sameSteps(a, b []orchestrator.Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Status != b[i].Status {
			return false
		}
	}
	return true
}
