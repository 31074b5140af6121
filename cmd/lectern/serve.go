package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	_ "github.com/jackzampolin/lectern/docs/swagger"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/server"
)

var (
	serveHost string
	servePort string
	logLevel  string
	logFormat string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lectern server",
	Long: `Start the Lectern HTTP server.

With database.driver postgres and no database.dsn, a local Postgres container
is started alongside the server and stopped when it shuts down.

The server provides:
  - /health           - Basic server health check
  - /ready            - Readiness check (store, object storage, redis)
  - /api/process      - Start processing a book (bearer token)
  - /api/books/{id}/… - Book status, characters and chat
  - /swagger/         - API documentation

Examples:
  lectern serve                    # Start on the configured port
  lectern serve --port 3000        # Start on custom port
  lectern serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := getHome()
		if err != nil {
			return err
		}

		cfgMgr, err := config.NewManager(configPath(h))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg := cfgMgr.Get()

		level := logLevel
		if level == "" {
			level = cfg.Server.LogLevel
		}
		format := logFormat
		if format == "" {
			format = cfg.Server.LogFormat
		}
		logger := newLogger(level, format)
		slog.SetDefault(logger)

		cfgMgr.SetLogger(logger)
		cfgMgr.WatchConfig()

		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == "" {
			port = cfg.Server.Port
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

// newLogger builds the process logger from a level and a text/json format.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default: server.host)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default: server.port)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default: server.log_level)")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "", "text or json (default: server.log_format)")

	rootCmd.AddCommand(serveCmd)
}
