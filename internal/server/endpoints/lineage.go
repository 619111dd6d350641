package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/svcctx"
)

// RefreshLineageResponse describes the batch loaded by a refresh.
type RefreshLineageResponse struct {
	Source   string `json:"source" yaml:"source"`
	Records  int    `json:"records" yaml:"records"`
	LoadedAt string `json:"loaded_at" yaml:"loaded_at"`
}

// RefreshLineageEndpoint handles POST /api/lineage/refresh.
type RefreshLineageEndpoint struct{}

func (e *RefreshLineageEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/lineage/refresh", e.handler
}

func (e *RefreshLineageEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Refresh lineage
//	@Description	Reload the lineage batch from its source. The previous batch is kept on failure.
//	@Tags			lineage
//	@Produce		json
//	@Success		200	{object}	RefreshLineageResponse
//	@Failure		502	{object}	ErrorResponse
//	@Router			/api/lineage/refresh [post]
func (e *RefreshLineageEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	store := svcctx.LineageFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "lineage store not initialized")
		return
	}

	if err := store.Refresh(r.Context()); err != nil {
		if logger := svcctx.LoggerFrom(r.Context()); logger != nil {
			logger.Warn("lineage refresh failed", "source", store.Source().String(), "error", err)
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	records, _ := store.Records()
	resp := RefreshLineageResponse{
		Source:   store.Source().String(),
		Records:  len(records),
		LoadedAt: store.LoadedAt().Format(time.RFC3339),
	}
	if log := svcctx.EventsFrom(r.Context()); log != nil {
		log.Publish(events.LineageRefreshed, "", map[string]any{"records": resp.Records, "source": resp.Source})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *RefreshLineageEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload the lineage batch on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp RefreshLineageResponse
			if err := client.Post(cmd.Context(), "/api/lineage/refresh", nil, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Loaded %d records from %s\n", resp.Records, resp.Source)
			return nil
		},
	}
}
