package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/portaoweb/portao-core/internal/gate"
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
	"github.com/portaoweb/portao-core/internal/infrastructure/database"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
	"github.com/portaoweb/portao-core/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CommandSender relays one gate command to the controller.
// *gate.Relay is the production implementation.
type CommandSender interface {
	Send(ctx context.Context, cmd gate.Command) gate.Result
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Relay       CommandSender
	Broadcaster *gate.Broadcaster
	History     gate.HistoryRepository // optional
	MQTT        *mqtt.Client           // optional, metrics only
	DB          *database.DB           // optional, metrics only
	PanelDir    string
	Version     string
}

// Server is the HTTP API server.
//
// It is created with New, bound with Start, and then served with Serve
// until Close is called.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	relay       CommandSender
	broadcaster *gate.Broadcaster
	history     gate.HistoryRepository
	mqtt        *mqtt.Client
	db          *database.DB
	panelDir    string
	version     string
	startTime   time.Time

	hub      *Hub
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	closeMu  sync.Mutex
	closed   bool
}

// New creates an API server and registers its WebSocket hub as a status sink
// on the broadcaster.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("command relay is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("status broadcaster is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger.With("component", "api"),
		relay:       deps.Relay,
		broadcaster: deps.Broadcaster,
		history:     deps.History,
		mqtt:        deps.MQTT,
		db:          deps.DB,
		panelDir:    deps.PanelDir,
		version:     deps.Version,
		startTime:   time.Now(),
	}

	s.hub = NewHub(s.wsCfg, s.logger)
	s.broadcaster.AddSink("websocket", s.hub)

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listen address and starts the hub.
//
// Binding happens here rather than in Serve so that a port already in use
// fails start-up instead of surfacing later from a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening",
		"address", ln.Addr().String(),
		"tls", s.cfg.TLS.Enabled,
		"websocket_path", s.wsCfg.Path,
	)
	return nil
}

// Serve handles connections until Close is called. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	if s.server == nil || s.listener == nil {
		return fmt.Errorf("api server not started")
	}

	var err error
	if s.cfg.TLS.Enabled {
		err = s.server.ServeTLS(s.listener, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
	} else {
		err = s.server.Serve(s.listener)
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving API: %w", err)
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server and disconnects every
// WebSocket client. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.server == nil || s.closed {
		return nil
	}
	s.closed = true

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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.server == nil || s.closed {
		return fmt.Errorf("api server not running")
	}
	return nil
}
