package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/svcctx"
)

// ListBooksResponse is the response for listing books.
type ListBooksResponse struct {
	Books []BookRow `json:"books" yaml:"books"`
}

// BookRow is one lineage record with its evaluation and dashboard state.
type BookRow struct {
	lineage.Evaluation `yaml:",inline"`
	Title              string          `json:"title" yaml:"title"`
	LocalFolder        string          `json:"local_folder" yaml:"local_folder"`
	Row                events.RowState `json:"row" yaml:"row"`
}

func (r ListBooksResponse) Headers() []string {
	return []string{"BOOK", "TITLE", "COMPLETE", "CONSISTENCY", "SONGS", "FILES", "PDFS", "STATE"}
}

func (r ListBooksResponse) Rows() [][]string {
	rows := make([][]string, 0, len(r.Books))
	for _, b := range r.Books {
		state := b.Row.Badge
		if state == "" {
			state = "-"
		}
		rows = append(rows, []string{
			b.BookID,
			b.Title,
			fmt.Sprintf("%.1f%%", b.Percentage),
			string(b.Verdict),
			strconv.Itoa(b.VerifiedSongs),
			strconv.Itoa(b.OutputFiles),
			strconv.Itoa(b.LocalPDFs),
			state,
		})
	}
	return rows
}

func (r ListBooksResponse) RightAlignedColumns() []int { return []int{2, 4, 5, 6} }

// bookRows evaluates records and merges in row state. A book with an active
// job is always reported as processing, whatever the event log says.
func bookRows(r *http.Request, records []lineage.Record, inconsistentOnly bool) []BookRow {
	log := svcctx.EventsFrom(r.Context())
	tr := svcctx.TrackerFrom(r.Context())

	rows := make([]BookRow, 0, len(records))
	for _, rec := range records {
		ev := lineage.Evaluate(rec)
		if inconsistentOnly && ev.Verdict != lineage.Inconsistent {
			continue
		}
		row := BookRow{Evaluation: ev, Title: rec.Title(), LocalFolder: rec.LocalFolder}
		if log != nil {
			row.Row = log.Row(rec.BookID)
		}
		if tr != nil {
			if _, active := tr.Job(rec.BookID); active {
				row.Row.Processing = true
				if row.Row.Badge == "" {
					row.Row.Badge = "processing"
				}
			} else {
				row.Row.Processing = false
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// ListBooksEndpoint handles GET /api/books.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List books
//	@Description	List every lineage record with its recomputed completeness and consistency
//	@Tags			books
//	@Produce		json
//	@Param			inconsistent	query		bool	false	"Only INCONSISTENT records"
//	@Success		200				{object}	ListBooksResponse
//	@Failure		503				{object}	ErrorResponse
//	@Router			/api/books [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LineageFrom(r.Context())
	records, err := store.Records()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	inconsistent, _ := strconv.ParseBool(r.URL.Query().Get("inconsistent"))
	writeJSON(w, http.StatusOK, ListBooksResponse{Books: bookRows(r, records, inconsistent)})
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var inconsistent bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List books with completeness and consistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/books"
			if inconsistent {
				path += "?inconsistent=true"
			}
			client := api.NewClient(getServerURL())
			var resp ListBooksResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&inconsistent, "inconsistent", false, "Only show inconsistent books")
	return cmd
}

// BooksSummaryEndpoint handles GET /api/books/summary.
type BooksSummaryEndpoint struct{}

func (e *BooksSummaryEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/summary", e.handler
}

func (e *BooksSummaryEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Lineage summary
//	@Description	Aggregate completeness and consistency across all records
//	@Tags			books
//	@Produce		json
//	@Success		200	{object}	lineage.Stats
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/summary [get]
func (e *BooksSummaryEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	records, err := svcctx.LineageFrom(r.Context()).Records()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lineage.Summarize(records))
}

func (e *BooksSummaryEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show aggregate lineage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp lineage.Stats
			if err := client.Get(cmd.Context(), "/api/books/summary", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
