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

	"github.com/nerrad567/gray-logic-installer/internal/allocator"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Allocator *allocator.Service
	// Gatherer backs /metrics; nil uses prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// ExternalHub, if set, is used instead of a hub owned by the server.
	ExternalHub *Hub
	Version     string
}

// Server is the HTTP API server for the installer console.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	alloc       *allocator.Service
	gatherer    prometheus.Gatherer
	version     string
	startTime   time.Time
	hub         *Hub
	externalHub bool
	tickets     *ticketStore
	limiter     *limiterStore

	mu     sync.Mutex
	server *http.Server
	addr   net.Addr
	cancel context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Allocator == nil {
		return nil, errors.New("allocator service is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		alloc:     deps.Allocator,
		gatherer:  deps.Gatherer,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}

	if rl := deps.Security.RateLimit; rl.Enabled {
		s.limiter = newLimiterStore(float64(rl.RequestsPerMinute)/60, rl.Burst)
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub used for placement-change broadcasts.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected), the ticket and rate-limit
// janitors, and the HTTP listener in a background goroutine. The listener is
// bound before Start returns, so a port conflict is reported here.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("api server already started")
	}

	srvCtx, cancel := context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.tickets.cleanLoop(srvCtx)
	if s.limiter != nil {
		s.limiter.StartJanitor(srvCtx)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.cancel = cancel
	s.addr = ln.Addr()
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, cancel := s.server, s.cancel
	s.server, s.cancel = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// authEnabled reports whether bearer tokens are required.
func (s *Server) authEnabled() bool {
	return s.secCfg.JWT.Secret != ""
}
