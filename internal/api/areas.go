package api

import "net/http"

// handleListAreas returns the mirrored area catalogue. This service is
// not the source of truth for areas — the list reflects whatever the
// core controller has published over MQTT.
func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	if s.areas == nil {
		writeJSON(w, http.StatusOK, map[string]any{"areas": []any{}, "count": 0})
		return
	}

	areas := s.areas.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"areas": areas,
		"count": len(areas),
	})
}
