package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status       string `json:"status"`
	Lineage      string `json:"lineage,omitempty"`
	Orchestrator string `json:"orchestrator,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Health check
//	@Description	Reports OK while the HTTP server is responding
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct {
	Attempts uint          // orchestrator probes, default 3
	Delay    time.Duration // between probes, default 250ms
}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Reports OK when the lineage batch is loaded and the orchestrator is reachable
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Lineage: "ok", Orchestrator: "ok"}

	store := svcctx.LineageFrom(r.Context())
	if store == nil || !store.Loaded() {
		resp.Status = "degraded"
		resp.Lineage = "not_loaded"
	}

	orch := svcctx.OrchestratorFrom(r.Context())
	if orch == nil {
		resp.Status = "degraded"
		resp.Orchestrator = "not_configured"
	} else {
		attempts, delay := e.Attempts, e.Delay
		if attempts == 0 {
			attempts = 3
		}
		if delay <= 0 {
			delay = 250 * time.Millisecond
		}
		err := retry.Do(
			func() error { return orch.Ping(r.Context()) },
			retry.Context(r.Context()),
			retry.Attempts(attempts),
			retry.Delay(delay),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			resp.Status = "degraded"
			resp.Orchestrator = "unreachable"
		}
	}

	if resp.Status != "ok" {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (lineage and orchestrator)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			err := client.Get(cmd.Context(), "/ready", &resp)
			var se *api.StatusError
			if err != nil && !(errors.As(err, &se) && se.Code == http.StatusServiceUnavailable) {
				return err
			}
			if resp.Status == "" {
				resp.Status = "degraded"
			}
			fmt.Printf("Status:       %s\n", resp.Status)
			if resp.Lineage != "" {
				fmt.Printf("Lineage:      %s\n", resp.Lineage)
			}
			if resp.Orchestrator != "" {
				fmt.Printf("Orchestrator: %s\n", resp.Orchestrator)
			}
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server  string        `json:"server" yaml:"server"`
	Lineage LineageStatus `json:"lineage" yaml:"lineage"`
	Polling PollingStatus `json:"polling" yaml:"polling"`
}

// LineageStatus describes the loaded lineage batch.
type LineageStatus struct {
	Source   string `json:"source" yaml:"source"`
	Loaded   bool   `json:"loaded" yaml:"loaded"`
	LoadedAt string `json:"loaded_at,omitempty" yaml:"loaded_at,omitempty"`
	Records  int    `json:"records" yaml:"records"`
}

// PollingStatus describes the status polling scheduler.
type PollingStatus struct {
	State        string `json:"state" yaml:"state"`
	Interval     string `json:"interval" yaml:"interval"`
	ActiveJobs   int    `json:"active_jobs" yaml:"active_jobs"`
	Ticks        int64  `json:"ticks" yaml:"ticks"`
	SkippedTicks int64  `json:"skipped_ticks" yaml:"skipped_ticks"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Server status
//	@Description	Lineage batch and polling scheduler details
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if store := svcctx.LineageFrom(r.Context()); store != nil {
		resp.Lineage.Source = store.Source().String()
		resp.Lineage.Loaded = store.Loaded()
		if resp.Lineage.Loaded {
			resp.Lineage.LoadedAt = store.LoadedAt().Format(time.RFC3339)
			if records, err := store.Records(); err == nil {
				resp.Lineage.Records = len(records)
			}
		}
	}

	if tr := svcctx.TrackerFrom(r.Context()); tr != nil {
		sched := tr.Scheduler()
		resp.Polling = PollingStatus{
			State:        sched.State().String(),
			Interval:     sched.Interval().String(),
			ActiveJobs:   len(tr.Active()),
			Ticks:        sched.Ticks(),
			SkippedTicks: sched.SkippedTicks(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Server: %s\n", resp.Server)
			fmt.Printf("Lineage:\n")
			fmt.Printf("  Source:    %s\n", resp.Lineage.Source)
			fmt.Printf("  Loaded:    %v\n", resp.Lineage.Loaded)
			fmt.Printf("  Loaded at: %s\n", resp.Lineage.LoadedAt)
			fmt.Printf("  Records:   %d\n", resp.Lineage.Records)
			fmt.Printf("Polling:\n")
			fmt.Printf("  State:     %s\n", resp.Polling.State)
			fmt.Printf("  Interval:  %s\n", resp.Polling.Interval)
			fmt.Printf("  Active:    %d\n", resp.Polling.ActiveJobs)
			fmt.Printf("  Ticks:     %d (%d skipped)\n", resp.Polling.Ticks, resp.Polling.SkippedTicks)
			return nil
		},
	}
}
