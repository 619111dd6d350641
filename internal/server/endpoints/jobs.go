package endpoints

import (
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/svcctx"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

// ListJobsResponse lists active reprocessing jobs.
type ListJobsResponse struct {
	State string    `json:"state" yaml:"state"`
	Jobs  []JobInfo `json:"jobs" yaml:"jobs"`
}

// JobInfo is an active job with derived fields.
type JobInfo struct {
	tracker.Job `yaml:",inline"`
	Elapsed     string `json:"elapsed" yaml:"elapsed"`
	Stalled     bool   `json:"stalled" yaml:"stalled"`
	Progress    string `json:"progress,omitempty" yaml:"progress,omitempty"`
}

func (r ListJobsResponse) Headers() []string {
	return []string{"BOOK", "TITLE", "ELAPSED", "PROGRESS", "STALLED"}
}

func (r ListJobsResponse) Rows() [][]string {
	rows := make([][]string, 0, len(r.Jobs))
	for _, j := range r.Jobs {
		stalled := ""
		if j.Stalled {
			stalled = "yes"
		}
		progress := j.Progress
		if progress == "" {
			progress = "-"
		}
		rows = append(rows, []string{j.BookID, j.Title, j.Elapsed, progress, stalled})
	}
	return rows
}

// ListJobsEndpoint handles GET /api/jobs.
type ListJobsEndpoint struct{}

func (e *ListJobsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs", e.handler
}

func (e *ListJobsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List active jobs
//	@Description	Active reprocessing jobs in submission order
//	@Tags			jobs
//	@Produce		json
//	@Success		200	{object}	ListJobsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/jobs [get]
func (e *ListJobsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	tr := svcctx.TrackerFrom(r.Context())
	if tr == nil {
		writeError(w, http.StatusServiceUnavailable, "tracker not initialized")
		return
	}

	resp := ListJobsResponse{State: tr.State().String(), Jobs: []JobInfo{}}
	now := time.Now()
	for _, job := range tr.Active() {
		info := JobInfo{
			Job:     job,
			Elapsed: now.Sub(job.StartTime).Round(time.Second).String(),
			Stalled: tr.Stalled(job),
		}
		if view, ok := tr.Progress(job.BookID); ok {
			info.Progress = view.Status
		}
		resp.Jobs = append(resp.Jobs, info)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListJobsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active reprocessing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListJobsResponse
			if err := client.Get(cmd.Context(), "/api/jobs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// JobProgressEndpoint handles GET /api/jobs/{book_id}/progress.
type JobProgressEndpoint struct{}

func (e *JobProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/jobs/{book_id}/progress", e.handler
}

func (e *JobProgressEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Job progress
//	@Description	Step-level execution progress of an active job
//	@Tags			jobs
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200		{object}	tracker.View
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/jobs/{book_id}/progress [get]
func (e *JobProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	tr := svcctx.TrackerFrom(r.Context())
	if tr == nil {
		writeError(w, http.StatusServiceUnavailable, "tracker not initialized")
		return
	}

	view, ok := tr.Progress(bookID)
	if !ok {
		writeError(w, http.StatusNotFound, "no progress for "+bookID)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (e *JobProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <book_id>",
		Short: "Show step progress of an active job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp tracker.View
			if err := client.Get(cmd.Context(), "/api/jobs/"+url.PathEscape(args[0])+"/progress", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
