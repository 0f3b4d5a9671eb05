package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/client"
)

// Event types pushed over live connections. Each carries an ISO-8601
// timestamp added by the registry at send time.
const (
	EventConnected        = "connected"
	EventPairingVerified  = "pairing_verified"
	EventPairingCompleted = "pairing_completed"
	EventAreaAdded        = "area_added"
	EventAreaRemoved      = "area_removed"
	EventAreaUpdated      = "area_updated"
	EventAreaEnabled      = "area_enabled"
	EventAreaDisabled     = "area_disabled"
	EventTokenRevoked     = "token_revoked"
)

// Event is a single realtime message.
type Event struct {
	Type      string         `json:"event_type"`
	Timestamp string         `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Conn is a live connection handle owned by the transport layer.
//
// Send must not block indefinitely — the transport buffers and drops on
// a full buffer. Close tears the underlying connection down.
type Conn interface {
	Send(event Event) error
	Close() error
}

// ClientSource resolves which active clients are scoped to an area.
// Satisfied by client.Store; the registry queries it per fan-out rather
// than maintaining a secondary index.
type ClientSource interface {
	ListActiveByArea(ctx context.Context, areaID string) ([]client.Client, error)
}

// Registry maps client identities to their live connections and holds
// the set of connected admin sessions for admin-facing events.
//
// At most one handle is tracked per client ID — a later registration
// replaces an earlier one. All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	clients    map[string]Conn
	admins     map[Conn]struct{}
	source     ClientSource
	logger     *slog.Logger
	closeGrace time.Duration
}

// Options configures a Registry.
type Options struct {
	Source ClientSource // resolves area membership for NotifyByArea

	// CloseGrace is the delay between queueing a terminal event and
	// closing the connection, giving the transport a chance to flush.
	CloseGrace time.Duration

	Logger *slog.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		clients:    make(map[string]Conn),
		admins:     make(map[Conn]struct{}),
		source:     opts.Source,
		logger:     opts.Logger,
		closeGrace: opts.CloseGrace,
	}
}

// Register associates a client ID with its live connection, replacing
// any prior handle for that ID. The replaced handle is closed — the
// device evidently reconnected and the old connection is dead weight.
func (r *Registry) Register(clientID string, conn Conn) {
	r.mu.Lock()
	old, existed := r.clients[clientID]
	r.clients[clientID] = conn
	r.mu.Unlock()

	if existed && old != conn {
		if err := old.Close(); err != nil {
			r.logger.Debug("closing replaced connection", "client_id", clientID, "error", err)
		}
	}
	r.logger.Debug("client connection registered", "client_id", clientID)
}

// Unregister removes a client's connection association. The conn
// argument guards against a stale teardown racing a fresh registration:
// the mapping is only removed if it still points at this handle.
func (r *Registry) Unregister(clientID string, conn Conn) {
	r.mu.Lock()
	if current, ok := r.clients[clientID]; ok && (conn == nil || current == conn) {
		delete(r.clients, clientID)
	}
	r.mu.Unlock()
	r.logger.Debug("client connection unregistered", "client_id", clientID)
}

// RegisterAdmin adds an admin session to the broadcast set.
func (r *Registry) RegisterAdmin(conn Conn) {
	r.mu.Lock()
	r.admins[conn] = struct{}{}
	r.mu.Unlock()
}

// UnregisterAdmin removes an admin session from the broadcast set.
func (r *Registry) UnregisterAdmin(conn Conn) {
	r.mu.Lock()
	delete(r.admins, conn)
	r.mu.Unlock()
}

// Notify pushes an event to a single client's live connection.
//
// If the client has no registered connection this is a silent no-op —
// there is no queueing or retry for missed events. Delivery failures are
// logged, never propagated to the caller.
func (r *Registry) Notify(clientID, eventType string, payload map[string]any) {
	r.mu.RLock()
	conn, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	r.deliver(conn, eventType, payload, "client_id", clientID)
}

// NotifyAdmins pushes an event to every connected admin session.
func (r *Registry) NotifyAdmins(eventType string, payload map[string]any) {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.admins))
	for conn := range r.admins {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		r.deliver(conn, eventType, payload, "audience", "admin")
	}
}

// NotifyByArea pushes an event to every active, connected client whose
// assigned areas contain the given area.
//
// Membership is resolved by querying the client store per call — an
// O(active-clients) scan traded for not maintaining a secondary index,
// acceptable for fleets of tens to low hundreds of devices.
func (r *Registry) NotifyByArea(ctx context.Context, areaID, eventType string, payload map[string]any) {
	if r.source == nil {
		return
	}

	clients, err := r.source.ListActiveByArea(ctx, areaID)
	if err != nil {
		r.logger.Error("resolving area members for notification failed",
			"area_id", areaID, "event", eventType, "error", err)
		return
	}

	for _, c := range clients {
		r.Notify(c.ID, eventType, payload)
	}
}

// DisconnectClient emits a terminal event to a client, then closes its
// connection after a short grace delay so the transport can flush the
// event before teardown, then unregisters the handle.
func (r *Registry) DisconnectClient(clientID, eventType, reason string) {
	r.mu.RLock()
	conn, ok := r.clients[clientID]
	r.mu.RUnlock()

	if !ok {
		return
	}

	r.deliver(conn, eventType, map[string]any{"reason": reason}, "client_id", clientID)

	grace := r.closeGrace
	time.AfterFunc(grace, func() {
		if err := conn.Close(); err != nil {
			r.logger.Debug("closing disconnected client", "client_id", clientID, "error", err)
		}
		r.Unregister(clientID, conn)
	})

	r.logger.Info("client force-disconnected", "client_id", clientID, "reason", reason)
}

// IsConnected reports whether a client currently has a live connection.
func (r *Registry) IsConnected(clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[clientID]
	return ok
}

// ClientCount returns the number of registered client connections.
func (r *Registry) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// AdminCount returns the number of connected admin sessions.
func (r *Registry) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.admins)
}

// deliver sends one event over one connection, absorbing every failure.
// A connection mid-close may panic on send; that must never reach the
// admin request that triggered the event.
func (r *Registry) deliver(conn Conn, eventType string, payload map[string]any, attrs ...any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("panic during event delivery",
				append([]any{"event", eventType, "panic", rec}, attrs...)...)
		}
	}()

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	}

	if err := conn.Send(event); err != nil {
		r.logger.Debug("event delivery failed",
			append([]any{"event", eventType, "error", err}, attrs...)...)
	}
}
