package endpoints

import (
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/svcctx"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

// GetBookResponse contains every record for a base book ID.
type GetBookResponse struct {
	BookID  string         `json:"book_id" yaml:"book_id"`
	Records []BookDetail   `json:"records" yaml:"records"`
	Job     *tracker.Job   `json:"job,omitempty" yaml:"job,omitempty"`
	Stats   *lineage.Stats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// BookDetail pairs a stored record with its recomputed evaluation.
type BookDetail struct {
	Record     lineage.Record     `json:"record" yaml:"record"`
	Evaluation lineage.Evaluation `json:"evaluation" yaml:"evaluation"`
}

// GetBookEndpoint handles GET /api/books/{book_id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{book_id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get book
//	@Description	All lineage records for a book, including suffixed re-runs
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Base book ID"
//	@Success		200		{object}	GetBookResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{book_id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	if bookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	records, err := svcctx.LineageFrom(r.Context()).ForBook(bookID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "book not found: "+bookID)
		return
	}

	resp := GetBookResponse{BookID: bookID}
	for _, rec := range records {
		resp.Records = append(resp.Records, BookDetail{Record: rec, Evaluation: lineage.Evaluate(rec)})
	}
	if len(records) > 1 {
		stats := lineage.Summarize(records)
		resp.Stats = &stats
	}
	if tr := svcctx.TrackerFrom(r.Context()); tr != nil {
		if job, ok := tr.Job(bookID); ok {
			resp.Job = &job
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <book_id>",
		Short: "Get lineage records for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp GetBookResponse
			if err := client.Get(cmd.Context(), "/api/books/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
