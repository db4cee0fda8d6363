// Package server exposes the metrics and health endpoints over HTTP.
//
// Endpoints:
//   - GET /health: Liveness probe
//   - GET /health/ready: Readiness probe, 503 until a library is loaded
//   - GET /metrics: Prometheus exposition (404 while metrics are disabled)
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/gridcache/internal/logger"
	"github.com/marmos91/gridcache/pkg/grid"
)

// DefaultShutdownTimeout bounds graceful shutdown once Start's context ends.
const DefaultShutdownTimeout = 5 * time.Second

// StatsSource reports the current library session. *grid.Controller
// satisfies it.
type StatsSource interface {
	Stats() (grid.Stats, error)
}

// Config configures the HTTP server.
type Config struct {
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
}

// Server serves the router built by NewRouter.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once

	mu   sync.Mutex
	addr net.Addr
}

// New creates a server in a stopped state. Call Start to begin serving.
func New(cfg Config, src StatsSource) *Server {
	cfg.applyDefaults()
	return &Server{
		config: cfg,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewRouter(src),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully. It returns nil on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server listen: %w", err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// ctx is already done; shutdown needs its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown: %w", err)
			logger.Error("metrics server shutdown error", logger.Err(err))
			return
		}
		logger.Info("metrics server stopped")
	})
	return shutdownErr
}

// Addr returns the listening address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
