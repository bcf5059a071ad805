package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/lightrelay/internal/audit"
	"github.com/nerrad567/lightrelay/internal/color"
	"github.com/nerrad567/lightrelay/internal/device"
	"github.com/nerrad567/lightrelay/internal/infrastructure/config"
	"github.com/nerrad567/lightrelay/internal/infrastructure/database"
	"github.com/nerrad567/lightrelay/internal/infrastructure/influxdb"
	"github.com/nerrad567/lightrelay/internal/infrastructure/logging"
	"github.com/nerrad567/lightrelay/internal/infrastructure/mqtt"
	"github.com/nerrad567/lightrelay/internal/yeelight"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceSource lists the attached devices. device.Registry implements it.
type DeviceSource interface {
	Addresses() []string
	Stats() []yeelight.Stats
}

// Database is the optional SQLite handle reported by health and metrics.
// database.DB implements it.
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Broker is the optional MQTT connection reported by health and metrics.
// mqtt.Client implements it.
type Broker interface {
	IsConnected() bool
}

// Telemetry is the optional InfluxDB sink reported by metrics.
// influxdb.Client implements it.
type Telemetry interface {
	Stats() influxdb.Stats
}

var (
	_ DeviceSource = (*device.Registry)(nil)
	_ Database     = (*database.DB)(nil)
	_ Broker       = (*mqtt.Client)(nil)
	_ Telemetry    = (*influxdb.Client)(nil)
)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Colors  *color.Table
	Devices DeviceSource

	// Optional.
	Audit     audit.Repository
	Database  Database
	MQTT      Broker
	Telemetry Telemetry
	Hub       *Hub // created by the server when nil
	Version   string
}

// Server is the read-only HTTP API: health, the color table, the device
// fleet, command history and the live event stream. It never drives
// devices.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	colors    *color.Table
	devices   DeviceSource
	auditRepo audit.Repository
	db        Database
	mqtt      Broker
	telemetry Telemetry
	hub       *Hub
	ownHub    bool
	version   string
	startTime time.Time

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.Colors == nil {
		return nil, errors.New("color table is required")
	}
	if deps.Devices == nil {
		return nil, errors.New("device source is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		colors:    deps.Colors,
		devices:   deps.Devices,
		auditRepo: deps.Audit,
		db:        deps.Database,
		mqtt:      deps.MQTT,
		telemetry: deps.Telemetry,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}
	return s, nil
}

// Hub returns the WebSocket hub events are broadcast through.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in a background goroutine. A bind
// failure is returned here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
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

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
