// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/home"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Lineage      *lineage.Store
	Tracker      *tracker.Tracker
	Events       *events.Log
	Orchestrator orchestrator.Pinger
	Config       *config.Manager
	Logger       *slog.Logger
	Home         *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// LineageFrom extracts the lineage store from context.
func LineageFrom(ctx context.Context) *lineage.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Lineage
	}
	return nil
}

// TrackerFrom extracts the reprocessing tracker from context.
func TrackerFrom(ctx context.Context) *tracker.Tracker {
	if s := ServicesFrom(ctx); s != nil {
		return s.Tracker
	}
	return nil
}

// EventsFrom extracts the UI event log from context.
func EventsFrom(ctx context.Context) *events.Log {
	if s := ServicesFrom(ctx); s != nil {
		return s.Events
	}
	return nil
}

// OrchestratorFrom extracts the orchestrator health checker from context.
func OrchestratorFrom(ctx context.Context) orchestrator.Pinger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Orchestrator
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
