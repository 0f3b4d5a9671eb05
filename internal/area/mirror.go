package area

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-access/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-access/internal/notify"
)

// Area is one entry in the mirrored catalog. The core controller owns
// the catalog; this service only reflects it.
type Area struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type,omitempty"`
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// configPayload is the retained config message published per area.
type configPayload struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// statusPayload is the retained status message published per area.
type statusPayload struct {
	Enabled bool `json:"enabled"`
}

// Notifier is the slice of the notification registry the mirror needs.
type Notifier interface {
	NotifyByArea(ctx context.Context, areaID, eventType string, payload map[string]any)
	NotifyAdmins(eventType string, payload map[string]any)
}

// Bus is the slice of the MQTT client the mirror needs.
type Bus interface {
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error
}

// Mirror maintains an in-memory copy of the core's area catalog from the
// retained config and status topics on the bus.
//
// Retained messages replay on every (re)connect, so the handlers are
// idempotent: an unchanged payload produces no event. Deleting an area is
// signalled by the core clearing the retained config (empty payload).
type Mirror struct {
	mu     sync.RWMutex
	areas  map[string]*Area
	status map[string]bool // statuses seen before their config arrived

	notifier Notifier
	topics   mqtt.Topics
	logger   *slog.Logger
}

// MirrorOptions configures a Mirror.
type MirrorOptions struct { //nolint:revive // area.MirrorOptions reads fine at call sites
	Notifier Notifier
	Logger   *slog.Logger
}

// NewMirror creates an empty area mirror.
func NewMirror(opts MirrorOptions) (*Mirror, error) {
	if opts.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Mirror{
		areas:    make(map[string]*Area),
		status:   make(map[string]bool),
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}, nil
}

// Start subscribes to the area config and status topics. The retained
// messages populate the mirror immediately; at that point the registry
// has no connections yet, so the initial flood notifies nobody.
func (m *Mirror) Start(ctx context.Context, bus Bus) error {
	if err := bus.Subscribe(m.topics.AllAreaConfigs(), 1, func(topic string, payload []byte) error {
		return m.handleConfig(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to area configs: %w", err)
	}

	if err := bus.Subscribe(m.topics.AllAreaStatuses(), 1, func(topic string, payload []byte) error {
		return m.handleStatus(ctx, topic, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to area statuses: %w", err)
	}

	return nil
}

// handleConfig applies a retained config message: add, update, or (on an
// empty payload) remove.
func (m *Mirror) handleConfig(ctx context.Context, topic string, payload []byte) error {
	areaID, ok := topicAreaID(topic)
	if !ok {
		m.logger.Warn("ignoring config on unexpected topic", "topic", topic)
		return nil
	}

	if len(payload) == 0 {
		m.remove(ctx, areaID)
		return nil
	}

	var cfg configPayload
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return fmt.Errorf("area config %s: %w", areaID, err)
	}
	if cfg.Name == "" {
		return fmt.Errorf("area config %s: missing name", areaID)
	}

	m.mu.Lock()
	existing, known := m.areas[areaID]
	if known && existing.Name == cfg.Name && existing.Type == cfg.Type {
		m.mu.Unlock()
		return nil
	}

	area := &Area{
		ID:        areaID,
		Name:      cfg.Name,
		Type:      cfg.Type,
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}
	if known {
		area.Enabled = existing.Enabled
	} else if enabled, seen := m.status[areaID]; seen {
		// Status retained message arrived before the config did.
		area.Enabled = enabled
		delete(m.status, areaID)
	}
	m.areas[areaID] = area
	m.mu.Unlock()

	eventType := notify.EventAreaAdded
	if known {
		eventType = notify.EventAreaUpdated
	}

	m.logger.Info("area catalog changed",
		"area_id", areaID,
		"name", cfg.Name,
		"event", eventType,
	)
	m.emit(ctx, areaID, eventType, map[string]any{
		"area_id": areaID,
		"name":    cfg.Name,
	})

	return nil
}

// handleStatus applies a retained status message (enabled/disabled).
func (m *Mirror) handleStatus(ctx context.Context, topic string, payload []byte) error {
	areaID, ok := topicAreaID(topic)
	if !ok {
		m.logger.Warn("ignoring status on unexpected topic", "topic", topic)
		return nil
	}
	if len(payload) == 0 {
		// Cleared retained status; the config clear is what removes the area.
		return nil
	}

	var st statusPayload
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("area status %s: %w", areaID, err)
	}

	m.mu.Lock()
	area, known := m.areas[areaID]
	if !known {
		m.status[areaID] = st.Enabled
		m.mu.Unlock()
		return nil
	}
	if area.Enabled == st.Enabled {
		m.mu.Unlock()
		return nil
	}
	area.Enabled = st.Enabled
	area.UpdatedAt = time.Now().UTC()
	name := area.Name
	m.mu.Unlock()

	eventType := notify.EventAreaEnabled
	if !st.Enabled {
		eventType = notify.EventAreaDisabled
	}

	m.logger.Info("area status changed",
		"area_id", areaID,
		"enabled", st.Enabled,
	)
	m.emit(ctx, areaID, eventType, map[string]any{
		"area_id": areaID,
		"name":    name,
	})

	return nil
}

// remove drops an area whose retained config was cleared. Affected clients
// are notified before the entry disappears.
func (m *Mirror) remove(ctx context.Context, areaID string) {
	m.mu.Lock()
	_, known := m.areas[areaID]
	delete(m.areas, areaID)
	delete(m.status, areaID)
	m.mu.Unlock()

	if !known {
		return
	}

	m.logger.Info("area removed from catalog", "area_id", areaID)
	m.emit(ctx, areaID, notify.EventAreaRemoved, map[string]any{
		"area_id": areaID,
	})
}

// emit fans an area event out to the clients scoped to the area and to
// connected admins.
func (m *Mirror) emit(ctx context.Context, areaID, eventType string, payload map[string]any) {
	m.notifier.NotifyByArea(ctx, areaID, eventType, payload)
	m.notifier.NotifyAdmins(eventType, payload)
}

// Get returns a copy of one mirrored area.
func (m *Mirror) Get(areaID string) (Area, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	area, ok := m.areas[areaID]
	if !ok {
		return Area{}, false
	}
	return *area, true
}

// List returns the mirrored catalog sorted by area ID. Always returns a
// non-nil slice.
func (m *Mirror) List() []Area {
	m.mu.RLock()
	defer m.mu.RUnlock()

	areas := make([]Area, 0, len(m.areas))
	for _, a := range m.areas {
		areas = append(areas, *a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].ID < areas[j].ID })

	return areas
}

// Count returns the number of mirrored areas.
func (m *Mirror) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.areas)
}

// topicAreaID extracts the area ID from graylogic/area/<id>/config or
// graylogic/area/<id>/status.
func topicAreaID(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "graylogic" || parts[1] != "area" || parts[2] == "" {
		return "", false
	}
	return parts[2], true
}
