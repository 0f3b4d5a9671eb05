package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/area"
	"github.com/nerrad567/gray-logic-access/internal/audit"
	"github.com/nerrad567/gray-logic-access/internal/auth"
	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/notify"
	"github.com/nerrad567/gray-logic-access/internal/pairing"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
//
// MQTT and Influx are optional — without them bus announcements and
// telemetry are silently skipped; every HTTP operation still works.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	DB            *sql.DB
	Gate          *auth.Gate
	Users         auth.UserRepository
	RefreshTokens auth.RefreshTokenRepository
	Pairing       *pairing.Manager
	Clients       client.Store
	Tokens        *client.TokenService
	Registry      *notify.Registry
	Areas         *area.Mirror
	AuditRepo     audit.Repository
	MQTT          *mqtt.Client
	Influx        *influxdb.Client
	Version       string
}

// Server is the HTTP API and realtime server for Gray Logic Access.
//
// It manages the HTTP listener, routes, middleware, websocket upgrades,
// and the async audit writer. The server is created with New() and
// started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	db        *sql.DB
	gate      *auth.Gate
	users     auth.UserRepository
	refresh   auth.RefreshTokenRepository
	pairing   *pairing.Manager
	clients   client.Store
	tokens    *client.TokenService
	registry  *notify.Registry
	areas     *area.Mirror
	auditRepo audit.Repository
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	version   string
	startedAt time.Time

	server    *http.Server
	tickets   *ticketStore
	verifyRL  *rateLimiter
	auditCh   chan *audit.AuditLog
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("auth gate is required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if deps.RefreshTokens == nil {
		return nil, fmt.Errorf("refresh token repository is required")
	}
	if deps.Pairing == nil {
		return nil, fmt.Errorf("pairing manager is required")
	}
	if deps.Clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if deps.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("notification registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		db:        deps.DB,
		gate:      deps.Gate,
		users:     deps.Users,
		refresh:   deps.RefreshTokens,
		pairing:   deps.Pairing,
		clients:   deps.Clients,
		tokens:    deps.Tokens,
		registry:  deps.Registry,
		areas:     deps.Areas,
		auditRepo: deps.AuditRepo,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		version:   deps.Version,
		tickets:   newTicketStore(),
	}

	if deps.Security.RateLimit.Enabled {
		s.verifyRL = newRateLimiter(deps.Security.RateLimit.RequestsPerMinute, time.Minute)
	}

	if deps.AuditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It launches the background audit writer and ticket cleanup, builds the
// router, and starts the HTTP listener in a background goroutine. The
// server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.startedAt = time.Now().UTC()

	if s.auditCh != nil {
		go s.drainAuditLog(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)
	if s.verifyRL != nil {
		go s.verifyRL.run(srvCtx)
	}

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
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (audit writer, ticket cleanup)
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

// publishAccessEvent announces an access lifecycle event on the bus
// (best-effort; skipped when MQTT is not configured).
func (s *Server) publishAccessEvent(eventType string, payload map[string]any) {
	if s.mqtt == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal access event", "event", eventType, "error", err)
		return
	}

	topic := mqtt.Topics{}.AccessEvent(eventType)
	if err := s.mqtt.Publish(topic, body, 1, false); err != nil {
		s.logger.Warn("failed to publish access event", "event", eventType, "error", err)
	}
}
