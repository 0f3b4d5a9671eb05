package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-access/internal/auth"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/notify"
)

// wsSendBufferSize is the per-connection outbound event buffer size.
const wsSendBufferSize = 64

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// wsConn adapts a gorilla WebSocket connection to the registry's Conn
// interface. Events are queued on a buffered channel and written by a
// single pump goroutine; a full buffer drops the event rather than
// blocking the notifier.
type wsConn struct {
	conn   *websocket.Conn
	send   chan notify.Event
	done   chan struct{}
	closed sync.Once
	logger *logging.Logger
}

func newWSConn(conn *websocket.Conn, logger *logging.Logger) *wsConn {
	return &wsConn{
		conn:   conn,
		send:   make(chan notify.Event, wsSendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Send queues an event for delivery. A slow consumer loses events; the
// pushes are advisory and the client can always re-fetch state.
func (c *wsConn) Send(event notify.Event) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	case c.send <- event:
		return nil
	default:
		c.logger.Debug("websocket send buffer full, dropping event", "event_type", event.Type)
		return nil
	}
}

// Close signals the pumps to stop and tears down the connection. Safe
// to call more than once.
func (c *wsConn) Close() error {
	c.closed.Do(func() {
		close(c.done)
	})
	return nil
}

// writePump drains the send channel onto the wire and keeps the
// connection alive with protocol-level pings.
func (c *wsConn) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			//nolint:errcheck // Best-effort close message
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case event := <-c.send:
			data, err := json.Marshal(event)
			if err != nil {
				c.logger.Error("failed to marshal websocket event", "error", err)
				continue
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes inbound frames. The push channel is one-way — the
// only thing client messages do is reset the read deadline, keeping the
// connection alive for browsers that ignore protocol pings.
func (c *wsConn) readPump(cfg config.WebSocketConfig, onClose func()) {
	defer func() {
		onClose()
		c.Close() //nolint:errcheck // teardown path
		c.conn.Close()
	}()

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			} else {
				c.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	}
}

// handleWebSocket upgrades the HTTP connection to a WebSocket.
// Authentication is via single-use ticket query parameter (obtained
// from POST /auth/ws-ticket).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	principal, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := newWSConn(rawConn, s.logger)

	var onClose func()
	switch p := principal.(type) {
	case auth.ClientPrincipal:
		s.registry.Register(p.ClientID, conn)
		if err := s.clients.UpdateClientLastSeen(r.Context(), p.ClientID); err != nil {
			s.logger.Debug("updating last seen failed", "client_id", p.ClientID, "error", err)
		}
		s.publishPresence(p.ClientID, true)
		onClose = func() {
			s.registry.Unregister(p.ClientID, conn)
			s.publishPresence(p.ClientID, false)
			s.recordWSGauge()
		}
	case auth.AdminPrincipal:
		s.registry.RegisterAdmin(conn)
		onClose = func() {
			s.registry.UnregisterAdmin(conn)
			s.recordWSGauge()
		}
	default:
		rawConn.Close()
		return
	}

	go conn.writePump(s.wsCfg)
	go conn.readPump(s.wsCfg, onClose)

	//nolint:errcheck // connection just opened, buffer cannot be full
	conn.Send(notify.Event{
		Type:      notify.EventConnected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   map[string]any{"id": principal.ID(), "role": principal.Role()},
	})

	s.recordWSGauge()
}

// publishPresence announces a client's connection state as a retained
// MQTT message so other services see presence without polling.
func (s *Server) publishPresence(clientID string, online bool) {
	if s.mqtt == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"online":    online,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	topic := mqtt.Topics{}.AccessClientPresence(clientID)
	if err := s.mqtt.PublishRetained(topic, payload); err != nil {
		s.logger.Warn("publishing presence failed", "client_id", clientID, "error", err)
	}
}

// recordWSGauge writes current connection counts to telemetry.
func (s *Server) recordWSGauge() {
	if s.influx == nil {
		return
	}
	s.influx.WriteWSConnections(s.registry.ClientCount(), s.registry.AdminCount())
}
