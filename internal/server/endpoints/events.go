package endpoints

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/svcctx"
)

// ListEventsResponse is a page of UI events.
type ListEventsResponse struct {
	Events  []events.Event `json:"events" yaml:"events"`
	LastSeq uint64         `json:"last_seq" yaml:"last_seq"`
}

func (r ListEventsResponse) Headers() []string {
	return []string{"SEQ", "TIME", "TYPE", "BOOK", "DATA"}
}

func (r ListEventsResponse) Rows() [][]string {
	rows := make([][]string, 0, len(r.Events))
	for _, ev := range r.Events {
		data := ""
		if len(ev.Data) > 0 {
			data = fmt.Sprint(ev.Data)
		}
		rows = append(rows, []string{
			strconv.FormatUint(ev.Seq, 10),
			ev.Time.Local().Format(time.TimeOnly),
			string(ev.Type),
			ev.BookID,
			data,
		})
	}
	return rows
}

func (r ListEventsResponse) RightAlignedColumns() []int { return []int{0} }

// ListEventsEndpoint handles GET /api/events.
type ListEventsEndpoint struct{}

func (e *ListEventsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/events", e.handler
}

func (e *ListEventsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List events
//	@Description	UI events with a sequence number greater than since
//	@Tags			events
//	@Produce		json
//	@Param			since	query		int	false	"Return events after this sequence number"
//	@Success		200		{object}	ListEventsResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/events [get]
func (e *ListEventsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	log := svcctx.EventsFrom(r.Context())
	if log == nil {
		writeError(w, http.StatusServiceUnavailable, "event log not initialized")
		return
	}

	var since uint64
	if raw := r.URL.Query().Get("since"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = n
	}

	evs := log.Since(since)
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, ListEventsResponse{Events: evs, LastSeq: log.LastSeq()})
}

func (e *ListEventsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var since uint64
	var follow bool
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List UI events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			for {
				var resp ListEventsResponse
				if err := client.Get(ctx, fmt.Sprintf("/api/events?since=%d", since), &resp); err != nil {
					return err
				}
				if len(resp.Events) > 0 || !follow {
					if err := api.Output(resp); err != nil {
						return err
					}
				}
				if !follow {
					return nil
				}
				since = resp.LastSeq
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(interval):
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only events after this sequence number")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new events")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --follow")
	return cmd
}
