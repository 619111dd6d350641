package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/svcctx"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

// ReprocessRequest is the request body for reprocessing a book.
type ReprocessRequest struct {
	SourcePDF string `json:"source_pdf,omitempty"`
	Force     bool   `json:"force,omitempty"`
	Title     string `json:"title,omitempty"`
}

// ReprocessResponse confirms that the orchestrator started a job.
type ReprocessResponse struct {
	Job     tracker.Job `json:"job" yaml:"job"`
	Message string      `json:"message" yaml:"message"`
}

// ReprocessBookEndpoint handles POST /api/books/{book_id}/reprocess.
type ReprocessBookEndpoint struct{}

func (e *ReprocessBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books/{book_id}/reprocess", e.handler
}

func (e *ReprocessBookEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Reprocess book
//	@Description	Ask the orchestrator to re-run a book and track it until it finishes.
//	@Description	The source PDF defaults to the one recorded in the lineage batch.
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			book_id	path		string				true	"Book ID"
//	@Param			request	body		ReprocessRequest	false	"Reprocess options"
//	@Success		202		{object}	ReprocessResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/api/books/{book_id}/reprocess [post]
func (e *ReprocessBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := strings.TrimSpace(r.PathValue("book_id"))
	if bookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	var req ReprocessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.SourcePDF == "" || req.Title == "" {
		if rec, ok := lookupRecord(r, bookID); ok {
			if req.SourcePDF == "" {
				req.SourcePDF = rec.Artifacts.SourcePDF.URI
			}
			if req.Title == "" {
				req.Title = rec.Title()
			}
		}
	}
	if req.SourcePDF == "" {
		writeError(w, http.StatusBadRequest, "source_pdf is required: no source PDF recorded for "+bookID)
		return
	}

	tr := svcctx.TrackerFrom(r.Context())
	if tr == nil {
		writeError(w, http.StatusServiceUnavailable, "tracker not initialized")
		return
	}

	job, err := tr.Submit(r.Context(), tracker.SubmitRequest{
		BookID:    bookID,
		SourcePDF: req.SourcePDF,
		Force:     req.Force,
		Title:     req.Title,
	})
	var subErr *tracker.SubmissionError
	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrAlreadyActive):
		writeError(w, http.StatusConflict, "reprocessing already in progress for "+bookID)
		return
	case errors.Is(err, tracker.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.As(err, &subErr):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	msg := fmt.Sprintf("Reprocessing started for %s", job.Title)
	if job.UseManualSplits {
		msg += " (using manual splits)"
	}
	writeJSON(w, http.StatusAccepted, ReprocessResponse{Job: job, Message: msg})
}

// lookupRecord finds the lineage record for bookID when a batch is loaded.
func lookupRecord(r *http.Request, bookID string) (lineage.Record, bool) {
	store := svcctx.LineageFrom(r.Context())
	if store == nil {
		return lineage.Record{}, false
	}
	rec, ok, err := store.Get(bookID)
	if err != nil || !ok {
		return lineage.Record{}, false
	}
	return rec, true
}

func (e *ReprocessBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req ReprocessRequest
	cmd := &cobra.Command{
		Use:   "reprocess <book_id>",
		Short: "Reprocess a book through the extraction pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ReprocessResponse
			path := "/api/books/" + url.PathEscape(args[0]) + "/reprocess"
			if err := client.Post(cmd.Context(), path, req, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Println(resp.Message)
			fmt.Printf("  job:       %s\n", resp.Job.ID)
			if resp.Job.ExecutionRef != "" {
				fmt.Printf("  execution: %s\n", resp.Job.ExecutionRef)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&req.SourcePDF, "source-pdf", "", "Source PDF URI (defaults to the lineage record)")
	cmd.Flags().BoolVar(&req.Force, "force", false, "Force reprocessing even if outputs exist")
	cmd.Flags().StringVar(&req.Title, "title", "", "Display title for notifications")
	return cmd
}
