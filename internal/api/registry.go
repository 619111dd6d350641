package api

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require the lineage batch.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Commands are grouped by the first path segment after /api.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running songshelf server via HTTP.

These commands require a running server (songshelf serve).
Use --server to specify a custom server URL.

Examples:
  songshelf api health                    # Check server health
  songshelf api books list --inconsistent # List inconsistent books
  songshelf api books reprocess <book_id> # Reprocess a book
  songshelf api jobs list                 # List active reprocessing jobs`,
	}

	groups := map[string]*cobra.Command{}
	for _, ep := range r.endpoints {
		_, path, _ := ep.Route()
		group := commandGroup(path)
		if group == "" {
			apiCmd.AddCommand(ep.Command(getServerURL))
			continue
		}
		parent, ok := groups[group]
		if !ok {
			parent = &cobra.Command{Use: group, Short: strings.ToUpper(group[:1]) + group[1:] + " commands"}
			groups[group] = parent
			apiCmd.AddCommand(parent)
		}
		parent.AddCommand(ep.Command(getServerURL))
	}

	return apiCmd
}

// commandGroup maps /api/books/{id} to "books"; top-level routes have no group.
func commandGroup(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	group, _, _ := strings.Cut(rest, "/")
	return group
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
