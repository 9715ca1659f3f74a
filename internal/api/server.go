package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldpoint/fieldpoint-core/internal/dispatch"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/config"
	"github.com/fieldpoint/fieldpoint-core/internal/infrastructure/logging"
	"github.com/fieldpoint/fieldpoint-core/internal/override"
	"github.com/fieldpoint/fieldpoint-core/internal/point"
	"github.com/fieldpoint/fieldpoint-core/internal/remote"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is any component with a liveness probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RoundReporter reports per-device first-round completion for the status
// endpoint. The publish engine satisfies this.
type RoundReporter interface {
	RoundsComplete() map[string]bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Registry   *point.Registry
	Cache      *point.Cache
	Groups     *remote.Groups
	Dispatcher *dispatch.Dispatcher
	Overrides  *override.Manager
	Rounds     RoundReporter

	// Health maps component names to their probes for the health endpoint.
	Health map[string]HealthChecker

	Version string
}

// Server is the HTTP and WebSocket surface of FieldPoint Core.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *point.Registry
	cache      *point.Cache
	groups     *remote.Groups
	dispatcher *dispatch.Dispatcher
	overrides  *override.Manager
	rounds     RoundReporter
	health     map[string]HealthChecker
	version    string

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates the API server. It is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("point registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		cache:      deps.Cache,
		groups:     deps.Groups,
		dispatcher: deps.Dispatcher,
		overrides:  deps.Overrides,
		rounds:     deps.Rounds,
		health:     deps.Health,
		version:    deps.Version,
	}, nil
}

// Hub returns the websocket hub, available after Start.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the websocket hub and the HTTP listener in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close drains in-flight requests and shuts the listener down.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
