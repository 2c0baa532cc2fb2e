package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/ego-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ego-bridge/internal/retry"
)

// Server timeouts.
const (
	// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
	// to complete during shutdown.
	gracefulShutdownTimeout = 10 * time.Second

	readTimeout  = 5 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// EngageSource exposes the latest engage value. engage.Cell satisfies it.
type EngageSource interface {
	Load() (string, bool)
}

// HealthChecker checks a backend. transport.Transport and influxdb.Sink
// satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectStats reports how the initial connection went. retry.Connector satisfies it.
type ConnectStats interface {
	Stats() retry.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Listen        string
	Logger        *logging.Logger
	Gatherer      prometheus.Gatherer // optional: enables /metrics
	Engage        EngageSource        // optional
	Transport     HealthChecker       // optional
	TransportKind string
	ConnectStats  ConnectStats  // optional
	Telemetry     HealthChecker // optional: the InfluxDB sink
	Version       string
}

// Server is the local HTTP server.
type Server struct {
	listen        string
	logger        *logging.Logger
	gatherer      prometheus.Gatherer
	engage        EngageSource
	transport     HealthChecker
	transportKind string
	connectStats  ConnectStats
	telemetry     HealthChecker
	version       string
	startTime     time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Listen == "" {
		return nil, fmt.Errorf("listen address is required")
	}

	return &Server{
		listen:        deps.Listen,
		logger:        deps.Logger,
		gatherer:      deps.Gatherer,
		engage:        deps.Engage,
		transport:     deps.Transport,
		transportKind: deps.TransportKind,
		connectStats:  deps.ConnectStats,
		telemetry:     deps.Telemetry,
		version:       deps.Version,
		startTime:     time.Now(),
	}, nil
}

// Start binds the listener and serves in a background goroutine.
// Binding errors (port in use, bad address) are returned directly.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}

	srv := &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	s.mu.Lock()
	s.server = srv
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
