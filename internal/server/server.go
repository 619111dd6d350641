package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/events"
	"github.com/jackzampolin/songshelf/internal/home"
	"github.com/jackzampolin/songshelf/internal/lineage"
	"github.com/jackzampolin/songshelf/internal/notifications"
	"github.com/jackzampolin/songshelf/internal/orchestrator"
	"github.com/jackzampolin/songshelf/internal/server/endpoints"
	"github.com/jackzampolin/songshelf/internal/svcctx"
	"github.com/jackzampolin/songshelf/internal/tracker"
)

// Server is the main Songshelf HTTP server.
// It loads the lineage batch on start and runs the status poller for
// reprocessing jobs until shutdown.
type Server struct {
	httpServer *http.Server
	lineage    *lineage.Store
	tracker    *tracker.Tracker
	events     *events.Log
	configMgr  *config.Manager
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	addr    string
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080, "0" picks a free port)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the songshelf home directory
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger

	// LineageSource overrides the configured lineage source.
	LineageSource lineage.Source
	// Orchestrator overrides the HTTP control plane client.
	Orchestrator orchestrator.Client
	// Notifier overrides the configured completion notifier.
	Notifier notifications.Notifier
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}

	source := cfg.LineageSource
	if source == nil {
		uri := appCfg.Lineage.Source
		if cfg.Home != nil {
			uri = cfg.Home.LineageSource(uri)
		}
		var err error
		source, err = lineage.OpenSource(context.Background(), uri, appCfg.Lineage.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to open lineage source: %w", err)
		}
	}
	store := lineage.NewStore(source, cfg.Logger.With("component", "lineage"))

	orch := cfg.Orchestrator
	if orch == nil {
		url := appCfg.OrchestratorURL()
		if url == "" {
			return nil, errors.New("orchestrator url is not configured")
		}
		orch = orchestrator.NewHTTPClient(url, appCfg.OrchestratorTimeout())
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notifications.New(notifications.Config{
			NtfyTopic:      appCfg.NtfyTopic(),
			RequestTimeout: appCfg.NotificationTimeout(),
		}, cfg.Logger.With("component", "notifications"))
	}

	eventLog := events.NewLog(appCfg.Events.Capacity)

	tr := tracker.New(tracker.Config{
		Orchestrator:   orch,
		Notifier:       notifier,
		Events:         eventLog,
		Logger:         cfg.Logger.With("component", "tracker"),
		PollInterval:   appCfg.PollInterval(),
		StatusAttempts: uint(appCfg.Polling.StatusAttempts),
		RetryDelay:     appCfg.RetryDelay(),
		StallThreshold: appCfg.Polling.StallThreshold,
		TitleFunc: func(bookID string) string {
			if rec, ok, err := store.Get(bookID); err == nil && ok {
				return rec.Title()
			}
			return bookID
		},
	})

	// Only the polling interval is safe to change while jobs are running.
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			tr.SetPollInterval(c.PollInterval())
			cfg.Logger.Info("polling interval updated from config", "interval", c.PollInterval())
		})
	}

	s := &Server{
		lineage:   store,
		tracker:   tr,
		events:    eventLog,
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
	}

	s.services = &svcctx.Services{
		Lineage: store,
		Tracker: tr,
		Events:  eventLog,
		Config:  cfg.ConfigManager,
		Logger:  cfg.Logger,
		Home:    cfg.Home,
	}
	if p, ok := orch.(orchestrator.Pinger); ok {
		s.services.Orchestrator = p
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.addr = s.httpServer.Addr

	return s, nil
}

// Start loads the lineage batch, starts the status poller and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
// A lineage load failure is logged; the server still starts and data
// endpoints answer 503 until a refresh succeeds.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.lineage.Refresh(ctx); err != nil {
		s.logger.Warn("lineage batch not loaded", "source", s.lineage.Source().String(), "error", err)
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		s.setNotRunning()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	pollCtx, stopPolling := context.WithCancel(ctx)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		s.tracker.Run(pollCtx)
	}()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("HTTP server error: %w", err)
		}
	}

	stopPolling()
	<-pollDone

	if err := s.shutdown(); err != nil {
		return err
	}
	return serveErr
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if active := s.tracker.Active(); len(active) > 0 {
		s.logger.Warn("abandoning active jobs", "count", len(active))
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address. After Start it is the bound
// address, so port "0" resolves to the picked port.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the HTTP handler with services attached.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Lineage returns the lineage store.
func (s *Server) Lineage() *lineage.Store {
	return s.lineage
}

// Tracker returns the reprocessing tracker.
func (s *Server) Tracker() *tracker.Tracker {
	return s.tracker
}

// Events returns the UI event log.
func (s *Server) Events() *events.Log {
	return s.events
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures a lineage batch is loaded.
// Returns 503 Service Unavailable until the first successful refresh.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.lineage.Loaded() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"lineage batch not loaded"}`))
			return
		}
		next(w, r)
	}
}
