package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/pairing"
)

// handleCreatePairingSession starts a pairing session. The response is
// the only place the PIN ever appears — it is excluded from all later
// serialisation.
func (s *Server) handleCreatePairingSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.pairing.CreateSession(r.Context())
	if err != nil {
		s.logger.Error("creating pairing session failed", "error", err)
		writeInternalError(w, "failed to create pairing session")
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("create", "pairing_session", session.ID, principal.ID(), "")

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": session,
		"pin":     session.PIN,
	})
}

// handleListPairingSessions returns all pairing sessions, newest first.
func (s *Server) handleListPairingSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.pairing.List(r.Context())
	if err != nil {
		s.logger.Error("listing pairing sessions failed", "error", err)
		writeInternalError(w, "failed to list pairing sessions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetPairingSession returns a single session. This endpoint is
// public so a pairing device can poll its own session status; the PIN
// is never included.
func (s *Server) handleGetPairingSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.pairing.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, pairing.ErrSessionNotFound) {
			writeNotFound(w, "pairing session not found")
			return
		}
		s.logger.Error("getting pairing session failed", "error", err)
		writeInternalError(w, "failed to get pairing session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

type verifyPINRequest struct {
	SessionID  string `json:"session_id"`
	PIN        string `json:"pin"`
	DeviceName string `json:"device_name"`
	DeviceType string `json:"device_type"`
}

// handleVerifyPIN is called by the device being paired. It is public,
// rate-limited, and deliberately vague: other than a malformed request,
// every failure is the same 401.
func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req verifyPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.SessionID == "" || req.PIN == "" || req.DeviceName == "" {
		writeBadRequest(w, "session_id, pin, and device_name are required")
		return
	}

	session, err := s.pairing.VerifyPIN(r.Context(), req.SessionID, req.PIN, req.DeviceName, client.DeviceType(req.DeviceType))
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrInvalidPIN),
			errors.Is(err, pairing.ErrInvalidDeviceName),
			errors.Is(err, client.ErrInvalidDeviceType):
			writeBadRequest(w, err.Error())
		default:
			if s.influx != nil {
				s.influx.WritePairingAttempt("rejected")
			}
			writeUnauthorized(w, "verification failed")
		}
		return
	}

	if s.influx != nil {
		s.influx.WritePairingAttempt("verified")
	}
	s.auditLog("update", "pairing_session", session.ID, "", "pin verified by "+req.DeviceName)

	writeJSON(w, http.StatusOK, session)
}

type completePairingRequest struct {
	ClientName    string   `json:"client_name"`
	AssignedAreas []string `json:"assigned_areas"`
}

// handleCompletePairing finalises a verified session: it creates the
// client record and returns the credential. Like the PIN, the plaintext
// credential appears in this response only.
func (s *Server) handleCompletePairing(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req completePairingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	credential, created, err := s.pairing.CompletePairing(r.Context(), sessionID, req.ClientName, req.AssignedAreas)
	if err != nil {
		switch {
		case errors.Is(err, pairing.ErrSessionNotFound):
			writeNotFound(w, "pairing session not found")
		case errors.Is(err, pairing.ErrNotVerified):
			writeConflict(w, "session has not been verified")
		case errors.Is(err, client.ErrInvalidName),
			errors.Is(err, client.ErrInvalidArea):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("completing pairing failed", "error", err, "session_id", sessionID)
			writeInternalError(w, "failed to complete pairing")
		}
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("create", "client", created.ID, principal.ID(), "paired via session "+sessionID)
	s.publishAccessEvent("pairing_completed", map[string]any{
		"client_id":   created.ID,
		"client_name": created.Name,
		"device_type": created.DeviceType,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"client":     created,
		"credential": credential,
	})
}

// handleCancelPairingSession cancels a session in any state.
func (s *Server) handleCancelPairingSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if err := s.pairing.Cancel(r.Context(), sessionID); err != nil {
		if errors.Is(err, pairing.ErrSessionNotFound) {
			writeNotFound(w, "pairing session not found")
			return
		}
		s.logger.Error("cancelling pairing session failed", "error", err, "session_id", sessionID)
		writeInternalError(w, "failed to cancel pairing session")
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("delete", "pairing_session", sessionID, principal.ID(), "")

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
