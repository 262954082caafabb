package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openfab-labs/acs-core/internal/audit"
	"github.com/openfab-labs/acs-core/internal/control"
	"github.com/openfab-labs/acs-core/internal/infrastructure/config"
	"github.com/openfab-labs/acs-core/internal/infrastructure/logging"
	"github.com/openfab-labs/acs-core/internal/liveness"
	"github.com/openfab-labs/acs-core/internal/pairing"
	"github.com/openfab-labs/acs-core/internal/reader"
	"github.com/openfab-labs/acs-core/internal/settings"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Readers  reader.Repository
	Pairing  *pairing.Service
	Control  *control.Controller
	Monitor  *liveness.Monitor
	Settings settings.Repository
	Audit    audit.Repository
	// ExternalHub, when set, is used instead of creating a new hub. The
	// telemetry ingestor needs the same hub for broadcasting, so main
	// constructs it first and injects it here.
	ExternalHub *Hub
	Version     string
}

// Server is the HTTP API server for the access-control core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	readers     reader.Repository
	pairing     *pairing.Service
	control     *control.Controller
	monitor     *liveness.Monitor
	settings    settings.Repository
	audit       audit.Repository
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Readers == nil {
		return nil, fmt.Errorf("reader repository is required")
	}
	if deps.Monitor == nil {
		return nil, fmt.Errorf("liveness monitor is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger.With("component", "api"),
		readers:  deps.Readers,
		pairing:  deps.Pairing,
		control:  deps.Control,
		monitor:  deps.Monitor,
		settings: deps.Settings,
		audit:    deps.Audit,
		version:  deps.Version,
		tickets:  newTicketStore(),
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and ticket cleanup, and
// launches the HTTP listener in a background goroutine. The server is
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	go s.tickets.cleanLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Stop hub and ticket cleanup goroutines.
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

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HealthCheck verifies the API server is running and responsive.
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
