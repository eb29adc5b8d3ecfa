// Package web provides the diagnostics HTTP server. It exposes pool
// statistics as JSON, Prometheus metrics, and liveness and readiness
// probes.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-i2p/connpool/lib/metrics"
	"github.com/go-i2p/connpool/lib/monitor"
	"github.com/go-i2p/connpool/lib/pool"
)

// Server is the diagnostics HTTP server.
type Server struct {
	httpServer *http.Server
	pool       *pool.Pool
	reporter   *monitor.Reporter
	logger     *slog.Logger
	mu         sync.RWMutex
	running    bool
	addr       string
}

// Config holds diagnostics server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "127.0.0.1:9090")
	ListenAddr string
	// Pool is the pool whose statistics are exposed
	Pool *pool.Pool
	// Reporter, if set, contributes accounting checks to /api/health
	Reporter *monitor.Reporter
	// Logger is the structured logger
	Logger *slog.Logger
}

// New creates a new diagnostics server. Call Start to begin listening
// and Stop to release resources.
func New(cfg Config) (*Server, error) {
	if cfg.Pool == nil {
		return nil, errors.New("web: pool is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		pool:     cfg.Pool,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
	}

	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("GET /api/stats", s.handleAPIStats)
	mux.HandleFunc("GET /api/health", s.handleAPIHealth)

	// Health check endpoints
	mux.HandleFunc("GET /healthz", s.handleAPILiveness)
	mux.HandleFunc("GET /readyz", s.handleAPIReadiness)

	// Metrics endpoint (Prometheus format)
	mux.Handle("GET /metrics", metrics.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.withMiddleware(mux),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Start binds the listen address and begins serving in the background.
// Binding happens before the running flag flips, so a failed Start
// leaves the server in its initial state.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		ln.Close()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("diagnostics server started", "addr", ln.Addr().String())

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	return nil
}

// Stop stops the diagnostics server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("diagnostics server stopped")
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// withMiddleware adds request logging and response hardening around the mux.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("X-Content-Type-Options", "nosniff")

		next.ServeHTTP(w, r)

		s.logger.Debug("request served",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("json encode error", "error", err)
	}
}
