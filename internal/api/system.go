package api

import (
	"net/http"
	"time"
)

// handleHealth is the unauthenticated liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"service": "gray-logic-access",
		"version": s.version,
	})
}

// handleSystemInfo returns an operational snapshot: component health,
// live connection counts, and stored entity totals.
func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	components := map[string]string{
		"database": "ok",
		"mqtt":     "disabled",
		"influxdb": "disabled",
	}

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			components["database"] = "error"
		}
	}
	if s.mqtt != nil {
		components["mqtt"] = "ok"
		if !s.mqtt.IsConnected() {
			components["mqtt"] = "disconnected"
		}
	}
	if s.influx != nil {
		components["influxdb"] = "ok"
		if !s.influx.IsConnected() {
			components["influxdb"] = "disconnected"
		}
	}

	info := map[string]any{
		"service":        "gray-logic-access",
		"version":        s.version,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
		"components":     components,
		"connections": map[string]int{
			"clients": s.registry.ClientCount(),
			"admins":  s.registry.AdminCount(),
		},
	}

	if clients, err := s.clients.ListClients(ctx); err == nil {
		info["client_count"] = len(clients)
	}
	if s.areas != nil {
		info["area_count"] = s.areas.Count()
	}
	if stats, err := s.clients.TokenStats(ctx); err == nil {
		info["tokens"] = stats
	}

	writeJSON(w, http.StatusOK, info)
}
