package endpoints

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackzampolin/songshelf/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// ReadyAttempts is how many times /ready probes the orchestrator.
	ReadyAttempts uint
	// ReadyDelay is the delay between orchestrator probes.
	ReadyDelay time.Duration
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{Attempts: cfg.ReadyAttempts, Delay: cfg.ReadyDelay},
		&StatusEndpoint{},

		// Book endpoints
		&ListBooksEndpoint{},
		&BooksSummaryEndpoint{},
		&GetBookEndpoint{},
		&ReprocessBookEndpoint{},

		// Reprocessing job endpoints
		&ListJobsEndpoint{},
		&JobProgressEndpoint{},

		// Lineage endpoints
		&RefreshLineageEndpoint{},

		// UI event feed
		&ListEventsEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&GetSettingEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
