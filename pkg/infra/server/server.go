// Package server runs the gin HTTP server with the shared middleware stack,
// health probes, Prometheus metrics and graceful shutdown.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/infra/middleware"
	httpopts "github.com/kart-io/campus-qa/pkg/options/http"
	"github.com/kart-io/campus-qa/pkg/utils/response"
)

// Lifecycle is implemented by components started and stopped with the server.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithGatherer exposes g on /metrics when metrics are enabled.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithReadinessCheck adds a named check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// Server is the HTTP server.
type Server struct {
	opts     *httpopts.Options
	engine   *gin.Engine
	srv      *http.Server
	gatherer prometheus.Gatherer
	checks   map[string]ReadinessCheck

	mu       sync.Mutex
	listener net.Listener
	errCh    chan error
}

var _ Lifecycle = (*Server)(nil)

// New creates a server with request id, tracing, recovery and logging
// middleware already installed.
func New(opts *httpopts.Options, options ...Option) *Server {
	gin.SetMode(opts.Mode)

	s := &Server{
		opts:     opts,
		engine:   gin.New(),
		gatherer: prometheus.DefaultGatherer,
		checks:   make(map[string]ReadinessCheck),
		errCh:    make(chan error, 1),
	}
	for _, o := range options {
		o(s)
	}

	s.engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.DefaultSkipPaths...),
		middleware.Recovery(opts.Mode == gin.DebugMode),
		middleware.Logger(),
	)
	s.engine.NoRoute(func(c *gin.Context) {
		response.Fail(c, errors.ErrRouteNotFound)
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok"})
	})
	s.engine.GET("/readyz", s.ready)
	if opts.EnableMetrics {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.srv = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.engine,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Engine returns the gin engine for route registration.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.opts.Addr
}

func (s *Server) ready(c *gin.Context) {
	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(c.Request.Context()); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		logger.Warnw("readiness check failed", "checks", failed)
		response.Fail(c, errors.ErrServiceUnavailable)
		return
	}
	response.OK(c, gin.H{"status": "ready"})
}

// Start listens and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.errCh <- err
		}
		close(s.errCh)
	}()
	logger.Infow("HTTP server started", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

// Run starts the server and blocks until ctx is cancelled, SIGINT/SIGTERM
// arrives or serving fails, then shuts down within ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case serveErr = <-s.errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	return serveErr
}
