package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/config"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/pgdocker"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/providers"
	"github.com/jackzampolin/lectern/internal/server/endpoints"
	"github.com/jackzampolin/lectern/internal/store"
	"github.com/jackzampolin/lectern/internal/svcctx"
)

// Server is the main lectern HTTP server.
// When the database driver is postgres and no DSN is configured it manages
// a local Postgres container, starting it on server start and stopping it on
// shutdown.
type Server struct {
	httpServer    *http.Server
	dockerManager *pgdocker.DockerManager
	configMgr     *config.Manager
	cfg           Config
	logger        *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services
	// closers run in reverse order on shutdown
	closers []func() error

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// Nil uses the defaults.
	ConfigManager *config.Manager
	// Home is the lectern home directory (vector index, database data).
	Home *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger

	// Store replaces the store opened from configuration.
	Store store.Store
	// Registry replaces the providers built from configuration.
	Registry *providers.Registry
	// Loader replaces the object storage document loader.
	Loader pipeline.DocumentLoader
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

	s := &Server{
		configMgr: cfg.ConfigManager,
		cfg:       cfg,
		logger:    cfg.Logger,
	}

	appCfg := s.config()
	if cfg.Store == nil && appCfg.Database.Driver == "postgres" &&
		appCfg.DatabaseDSN() == "" && appCfg.Database.Docker.AutoStart {
		dockerCfg := pgdocker.DockerConfig{
			ContainerName: appCfg.Database.Docker.ContainerName,
			Image:         appCfg.Database.Docker.Image,
			HostPort:      appCfg.Database.Docker.Port,
		}
		if cfg.Home != nil {
			dockerCfg.HomePath = cfg.Home.Path()
			dockerCfg.DataPath = cfg.Home.PostgresDataPath()
		}
		mgr, err := pgdocker.NewDockerManager(dockerCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres manager: %w", err)
		}
		s.dockerManager = mgr
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{DockerManager: s.dockerManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit, s.requireAuth)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Chat answers wait on two LLM calls.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// config returns the current configuration.
func (s *Server) config() *config.Config {
	if s.configMgr != nil {
		return s.configMgr.Get()
	}
	return config.DefaultConfig()
}

// Start builds the services and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.dockerManager != nil {
		s.logger.Info("starting postgres container", "container", s.dockerManager.ContainerName())
		if err := s.dockerManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start postgres: %w", err)
		}
	}

	services, err := s.buildServices(ctx)
	if err != nil {
		_ = s.shutdown()
		return err
	}
	s.mu.Lock()
	s.services = services
	s.mu.Unlock()

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown stops accepting requests, cancels running jobs, closes the
// services and stops the managed database.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	grace := time.Duration(s.config().Server.ShutdownGrace) * time.Second
	if grace <= 0 {
		grace = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.mu.RLock()
	services := s.services
	s.mu.RUnlock()
	if services != nil && services.Scheduler != nil {
		if err := services.Scheduler.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("jobs did not stop in time", "error", err)
		}
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("close error", "error", err)
		}
	}
	s.closers = nil

	if s.dockerManager != nil {
		s.logger.Info("stopping postgres container")
		if err := s.dockerManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("postgres stop error", "error", err)
		}
		if err := s.dockerManager.Close(); err != nil {
			s.logger.Error("docker client close error", "error", err)
		}
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

// Services returns the running services.
// Returns nil if the server hasn't started yet.
func (s *Server) Services() *svcctx.Services {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.services
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the services are built.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Services() == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// requireAuth checks the bearer token against server.api_token. An empty
// token disables the check.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.config().APIToken()
		if token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="lectern"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
		}
		next(w, r)
	}
}
