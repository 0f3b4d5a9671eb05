package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-access/internal/client"
	"github.com/nerrad567/gray-logic-access/internal/notify"
)

// handleListClients returns all paired clients with their live
// connection state.
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.clients.ListClients(r.Context())
	if err != nil {
		s.logger.Error("listing clients failed", "error", err)
		writeInternalError(w, "failed to list clients")
		return
	}

	type clientView struct {
		client.Client
		Connected bool `json:"connected"`
	}

	views := make([]clientView, 0, len(clients))
	for _, c := range clients {
		views = append(views, clientView{
			Client:    c,
			Connected: s.registry.IsConnected(c.ID),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"clients": views,
		"count":   len(views),
	})
}

// handleGetClient returns a single client with its credentials.
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	c, err := s.clients.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		s.logger.Error("getting client failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to get client")
		return
	}

	tokens, err := s.clients.ListTokens(r.Context(), client.TokenFilter{ClientID: clientID, IncludeRevoked: true})
	if err != nil {
		s.logger.Error("listing client tokens failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to get client")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"client":    c,
		"tokens":    tokens,
		"connected": s.registry.IsConnected(c.ID),
	})
}

type updateClientRequest struct {
	Name          string   `json:"name"`
	AssignedAreas []string `json:"assigned_areas"`
}

// handleUpdateClient renames a client and/or reassigns its areas. If
// the client is connected, area changes are pushed immediately — one
// event per added area, one per removed.
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	var req updateClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	// The store is a raw persistence layer; validate here, the same
	// rules CompletePairing applies when the client is first created.
	if err := client.ValidateName(req.Name); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if err := client.ValidateAreas(req.AssignedAreas); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	before, err := s.clients.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		writeInternalError(w, "failed to get client")
		return
	}

	if err := s.clients.UpdateClient(r.Context(), clientID, req.Name, req.AssignedAreas); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		s.logger.Error("updating client failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to update client")
		return
	}

	s.pushAreaDelta(clientID, before.AssignedAreas, req.AssignedAreas)

	principal := principalFromContext(r.Context())
	s.auditLog("update", "client", clientID, principal.ID(), "")

	updated, err := s.clients.GetClient(r.Context(), clientID)
	if err != nil {
		writeInternalError(w, "failed to get client")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// pushAreaDelta notifies a connected client about each area it gained
// or lost, so it can adjust its UI without a reconnect.
func (s *Server) pushAreaDelta(clientID string, before, after []string) {
	had := make(map[string]struct{}, len(before))
	for _, a := range before {
		had[a] = struct{}{}
	}
	has := make(map[string]struct{}, len(after))
	for _, a := range after {
		has[a] = struct{}{}
	}

	for _, a := range after {
		if _, ok := had[a]; !ok {
			s.registry.Notify(clientID, notify.EventAreaAdded, map[string]any{"area_id": a})
		}
	}
	for _, a := range before {
		if _, ok := has[a]; !ok {
			s.registry.Notify(clientID, notify.EventAreaRemoved, map[string]any{"area_id": a})
		}
	}
}

// handleEnableClient reactivates a disabled client.
func (s *Server) handleEnableClient(w http.ResponseWriter, r *http.Request) {
	s.setClientActive(w, r, true)
}

// handleDisableClient deactivates a client. Any live WebSocket
// connection is closed so access ends immediately, not at next auth.
func (s *Server) handleDisableClient(w http.ResponseWriter, r *http.Request) {
	s.setClientActive(w, r, false)
}

func (s *Server) setClientActive(w http.ResponseWriter, r *http.Request, active bool) {
	clientID := chi.URLParam(r, "id")

	if err := s.clients.SetClientActive(r.Context(), clientID, active); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		s.logger.Error("setting client active state failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to update client")
		return
	}

	action := "enabled"
	if !active {
		action = "disabled"
		s.registry.DisconnectClient(clientID, notify.EventTokenRevoked, "client disabled")
	}

	principal := principalFromContext(r.Context())
	s.auditLog("update", "client", clientID, principal.ID(), action)
	s.publishAccessEvent("client_"+action, map[string]any{"client_id": clientID})

	writeJSON(w, http.StatusOK, map[string]string{"status": action})
}

// handleDeleteClient removes a client and all its credentials. A live
// connection is closed first.
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	s.registry.DisconnectClient(clientID, notify.EventTokenRevoked, "client deleted")

	if err := s.clients.DeleteClient(r.Context(), clientID); err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		s.logger.Error("deleting client failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to delete client")
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("delete", "client", clientID, principal.ID(), "")
	s.publishAccessEvent("client_deleted", map[string]any{"client_id": clientID})

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleIssueCredential issues a fresh credential for an existing
// client, scoped to the client's current areas. Used when a device is
// re-provisioned without going through pairing again.
func (s *Server) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "id")

	c, err := s.clients.GetClient(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			writeNotFound(w, "client not found")
			return
		}
		writeInternalError(w, "failed to get client")
		return
	}
	if !c.IsActive {
		writeConflict(w, "client is disabled")
		return
	}

	credential, token, err := s.tokens.Issue(r.Context(), c.ID, c.AssignedAreas)
	if err != nil {
		s.logger.Error("issuing credential failed", "error", err, "client_id", clientID)
		writeInternalError(w, "failed to issue credential")
		return
	}

	principal := principalFromContext(r.Context())
	s.auditLog("create", "token", token.ID, principal.ID(), "manual credential issue for "+clientID)

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"credential": credential,
	})
}
