package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/rulesengine/pkg/config"
	"mercator-hq/rulesengine/pkg/telemetry/health"
	"mercator-hq/rulesengine/pkg/telemetry/tracing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// BuildInfo is reported on /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the operations HTTP server. It serves probes, build info and
// Prometheus metrics; rule evaluation is not exposed.
type Server struct {
	config  *config.ServerConfig
	checker *health.Checker
	metrics http.Handler
	build   BuildInfo
	logger  *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	http     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts handler at metricsPath.
func WithMetrics(handler http.Handler) Option {
	return func(s *Server) { s.metrics = handler }
}

// WithBuildInfo sets the /version payload.
func WithBuildInfo(info BuildInfo) Option {
	return func(s *Server) { s.build = info }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates an ops server. The metrics handler is mounted at
// metricsPath when set with WithMetrics.
func New(cfg *config.ServerConfig, checker *health.Checker, metricsPath string, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		checker: checker,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.http = &http.Server{
		Handler:      s.routes(metricsPath),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) routes(metricsPath string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(tracing.HTTPMiddleware)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get(s.config.HealthPath, s.checker.LivenessHandler())
	r.Head(s.config.HealthPath, s.checker.LivenessHandler())
	r.Get(s.config.ReadyPath, s.checker.ReadinessHandler())
	r.Head(s.config.ReadyPath, s.checker.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	if s.metrics != nil && metricsPath != "" {
		r.Method(http.MethodGet, metricsPath, s.metrics)
	}

	return r
}

// Listen binds the configured address. Start calls it when needed; calling
// it first lets callers learn the bound address through Addr.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting ops server", "address", s.Addr().String())
		if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ops server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down ops server", "timeout", s.config.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown error: %w", err)
	}
	return nil
}
