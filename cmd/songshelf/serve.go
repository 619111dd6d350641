package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/config"
	"github.com/jackzampolin/songshelf/internal/home"
	"github.com/jackzampolin/songshelf/internal/server"
)

var (
	serveHost  string
	servePort  string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Songshelf server",
	Long: `Start the Songshelf HTTP server.

The server loads the lineage batch, accepts reprocessing requests and polls
the orchestrator for every active job until it completes or fails. Jobs are
held in memory only; restarting the server forgets them.

The config file is watched; a new polling interval applies the next time
polling starts.

The server provides:
  - /health  - Basic server health check
  - /ready   - Readiness check (lineage batch and orchestrator)
  - /status  - Lineage and polling details
  - /api/... - Books, jobs, events and settings

Examples:
  songshelf serve                    # Start on the configured address
  songshelf serve --port 3000        # Start on custom port
  songshelf serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		level := slog.LevelInfo
		if serveDebug {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		// Get home directory
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(cfgFile, h.Path())
		if err != nil {
			return err
		}
		cfgMgr.SetLogger(logger.With("component", "config"))
		if cfgMgr.File() != "" {
			logger.Info("using config file", "file", cfgMgr.File())
			cfgMgr.WatchConfig()
		}

		cfg := cfgMgr.Get()
		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		if cmd.Flags().Changed("port") {
			port = servePort
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: cfgMgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to (overrides server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
