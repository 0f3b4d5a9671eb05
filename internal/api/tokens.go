package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/notify"
)

// handleListTokens returns credential records, optionally filtered by
// client and including revoked ones.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	filter := client.TokenFilter{
		ClientID:       r.URL.Query().Get("client_id"),
		IncludeRevoked: r.URL.Query().Get("include_revoked") == "true",
	}

	tokens, err := s.clients.ListTokens(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing tokens failed", "error", err)
		writeInternalError(w, "failed to list tokens")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": tokens,
		"count":  len(tokens),
	})
}

// handleGetToken returns a single credential record.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.clients.GetToken(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, client.ErrTokenNotFound) {
			writeNotFound(w, "token not found")
			return
		}
		writeInternalError(w, "failed to get token")
		return
	}

	writeJSON(w, http.StatusOK, token)
}

type revokeTokenRequest struct {
	Reason string `json:"reason,omitempty"`
}

// handleRevokeToken revokes a credential. The owning client is told and
// disconnected so revocation takes effect immediately.
func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")

	var req revokeTokenRequest
	//nolint:errcheck // reason is optional, empty body is fine
	json.NewDecoder(r.Body).Decode(&req)

	token, err := s.clients.GetToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, client.ErrTokenNotFound) {
			writeNotFound(w, "token not found")
			return
		}
		writeInternalError(w, "failed to revoke token")
		return
	}

	revoked, err := s.tokens.Revoke(r.Context(), tokenID, req.Reason)
	if err != nil {
		s.logger.Error("revoking token failed", "error", err, "token_id", tokenID)
		writeInternalError(w, "failed to revoke token")
		return
	}
	if !revoked {
		writeConflict(w, "token already revoked")
		return
	}

	s.registry.DisconnectClient(token.ClientID, notify.EventTokenRevoked, req.Reason)

	principal := principalFromContext(r.Context())
	s.auditLog("revoke", "token", tokenID, principal.ID(), req.Reason)
	s.publishAccessEvent("token_revoked", map[string]any{
		"token_id":  tokenID,
		"client_id": token.ClientID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

type updateTokenAreasRequest struct {
	AssignedAreas []string `json:"assigned_areas"`
}

// handleUpdateTokenAreas rewrites a credential's area scope in place.
// The change applies without reissuing the credential; a connected
// client is told which areas it gained or lost.
func (s *Server) handleUpdateTokenAreas(w http.ResponseWriter, r *http.Request) {
	tokenID := chi.URLParam(r, "id")

	var req updateTokenAreasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	before, err := s.clients.GetToken(r.Context(), tokenID)
	if err != nil {
		if errors.Is(err, client.ErrTokenNotFound) {
			writeNotFound(w, "token not found")
			return
		}
		writeInternalError(w, "failed to update token")
		return
	}

	updated, err := s.tokens.UpdateScope(r.Context(), tokenID, req.AssignedAreas)
	if err != nil {
		switch {
		case errors.Is(err, client.ErrTokenNotFound):
			writeNotFound(w, "token not found")
		case errors.Is(err, client.ErrTokenRevoked):
			writeConflict(w, "token is revoked")
		case errors.Is(err, client.ErrInvalidArea):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("updating token scope failed", "error", err, "token_id", tokenID)
			writeInternalError(w, "failed to update token")
		}
		return
	}

	s.pushAreaDelta(before.ClientID, before.AssignedAreas, updated.AssignedAreas)

	principal := principalFromContext(r.Context())
	s.auditLog("update", "token", tokenID, principal.ID(), "area scope changed")

	writeJSON(w, http.StatusOK, updated)
}

// handleCleanupTokens deletes expired credential records immediately
// instead of waiting for the background sweep.
func (s *Server) handleCleanupTokens(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.tokens.SweepExpired(r.Context())
	if err != nil {
		s.logger.Error("token cleanup failed", "error", err)
		writeInternalError(w, "failed to clean up tokens")
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("delete", "token", "", principal.ID(), "expired token cleanup")

	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// handleTokenStats returns aggregate credential counts.
func (s *Server) handleTokenStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.clients.TokenStats(r.Context())
	if err != nil {
		s.logger.Error("getting token stats failed", "error", err)
		writeInternalError(w, "failed to get token stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
