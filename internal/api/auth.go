package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-access/internal/auth"
)

// ─── Login / refresh ──────────────────────────────────────────────────────────

type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	DeviceInfo string `json:"device_info,omitempty"`
}

type loginResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	TokenType    string          `json:"token_type"`
	ExpiresIn    int             `json:"expires_in"` // seconds
	User         *auth.AdminUser `json:"user"`
}

// handleLogin authenticates an admin by username/password and issues an
// access/refresh token pair. Invalid credentials are indistinguishable
// from unknown or inactive accounts.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	user, err := s.users.GetByUsername(r.Context(), req.Username)
	if err != nil || !user.IsActive {
		// Run the hash anyway so response timing does not reveal
		// whether the account exists.
		_, _ = auth.VerifyPassword(req.Password, dummyPasswordHash) //nolint:errcheck // timing equalisation only
		s.recordAuthDecision("admin", false)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !ok {
		s.recordAuthDecision("admin", false)
		writeUnauthorized(w, "invalid credentials")
		return
	}

	pair, err := s.issueTokenPair(r.Context(), user, "", req.DeviceInfo)
	if err != nil {
		s.logger.Error("issuing token pair failed", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to create session")
		return
	}

	s.recordAuthDecision("admin", true)
	s.auditLog("login", "user", user.ID, user.ID, "")

	pair.User = user
	writeJSON(w, http.StatusOK, pair)
}

// dummyPasswordHash is verified against when the username lookup fails,
// keeping the failure path the same shape as a real mismatch.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=2$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh rotates a refresh token and issues a new access token.
// Presenting a revoked token is treated as theft: the whole family is
// invalidated so neither the attacker nor the victim keeps a session.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeBadRequest(w, "refresh_token is required")
		return
	}

	stored, err := s.refresh.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
	if err != nil {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	if stored.Revoked {
		s.logger.Warn("revoked refresh token reused, revoking family",
			"user_id", stored.UserID, "family_id", stored.FamilyID)
		if err := s.refresh.RevokeFamily(r.Context(), stored.FamilyID); err != nil {
			s.logger.Error("revoking token family failed", "error", err)
		}
		s.auditLog("revoke", "token_family", stored.FamilyID, stored.UserID, "refresh token reuse detected")
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	if time.Now().After(stored.ExpiresAt) {
		writeUnauthorized(w, "refresh token expired")
		return
	}

	user, err := s.users.GetByID(r.Context(), stored.UserID)
	if err != nil || !user.IsActive {
		writeUnauthorized(w, "invalid refresh token")
		return
	}

	pair, err := s.rotateTokenPair(r.Context(), user, stored)
	if err != nil {
		s.logger.Error("rotating token pair failed", "error", err, "user_id", user.ID)
		writeInternalError(w, "failed to refresh session")
		return
	}

	pair.User = user
	writeJSON(w, http.StatusOK, pair)
}

// issueTokenPair creates a fresh refresh token (new family when familyID
// is empty) and a matching access token.
func (s *Server) issueTokenPair(ctx context.Context, user *auth.AdminUser, familyID, deviceInfo string) (*loginResponse, error) {
	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	if familyID == "" {
		familyID = uuid.NewString()
	}

	token := &auth.RefreshToken{
		ID:         "rt-" + uuid.NewString()[:16],
		UserID:     user.ID,
		FamilyID:   familyID,
		TokenHash:  auth.HashToken(raw),
		DeviceInfo: deviceInfo,
		ExpiresAt:  time.Now().Add(time.Duration(s.secCfg.JWT.RefreshTokenTTL) * time.Minute),
	}
	if err := s.refresh.Create(ctx, token); err != nil {
		return nil, err
	}

	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return &loginResponse{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    s.secCfg.JWT.AccessTokenTTL * 60,
	}, nil
}

// rotateTokenPair atomically replaces the consumed refresh token with a
// new one in the same family.
func (s *Server) rotateTokenPair(ctx context.Context, user *auth.AdminUser, old *auth.RefreshToken) (*loginResponse, error) {
	raw, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	next := &auth.RefreshToken{
		UserID:     user.ID,
		FamilyID:   old.FamilyID,
		TokenHash:  auth.HashToken(raw),
		DeviceInfo: old.DeviceInfo,
		ExpiresAt:  time.Now().Add(time.Duration(s.secCfg.JWT.RefreshTokenTTL) * time.Minute),
	}
	if err := s.refresh.RotateRefreshToken(ctx, old.ID, next); err != nil {
		return nil, err
	}

	access, err := auth.GenerateAccessToken(user, s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	return &loginResponse{
		AccessToken:  access,
		RefreshToken: raw,
		TokenType:    "Bearer",
		ExpiresIn:    s.secCfg.JWT.AccessTokenTTL * 60,
	}, nil
}

// ─── Logout / identity ────────────────────────────────────────────────────────

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
	All          bool   `json:"all,omitempty"`
}

// handleLogout revokes the caller's refresh token family. Admins may
// pass all=true to end every session; clients have nothing to revoke
// server-side and simply get an acknowledgement.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	var req logoutRequest
	//nolint:errcheck // empty body is a valid logout request
	json.NewDecoder(r.Body).Decode(&req)

	if admin, ok := principal.(auth.AdminPrincipal); ok {
		switch {
		case req.All:
			if err := s.refresh.RevokeAllForUser(r.Context(), admin.UserID); err != nil {
				s.logger.Error("revoking sessions failed", "error", err, "user_id", admin.UserID)
				writeInternalError(w, "failed to revoke sessions")
				return
			}
		case req.RefreshToken != "":
			stored, err := s.refresh.GetByTokenHash(r.Context(), auth.HashToken(req.RefreshToken))
			if err == nil && stored.UserID == admin.UserID {
				if err := s.refresh.RevokeFamily(r.Context(), stored.FamilyID); err != nil {
					s.logger.Error("revoking token family failed", "error", err)
				}
			}
		}
		s.auditLog("logout", "user", admin.UserID, admin.UserID, "")
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the authenticated principal's identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())

	switch p := principal.(type) {
	case auth.AdminPrincipal:
		user, err := s.users.GetByID(r.Context(), p.UserID)
		if err != nil {
			writeNotFound(w, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"role": auth.RoleAdmin,
			"user": user,
		})
	case auth.ClientPrincipal:
		writeJSON(w, http.StatusOK, map[string]any{
			"role":           auth.RoleClient,
			"client_id":      p.ClientID,
			"token_id":       p.TokenID,
			"name":           p.Name,
			"assigned_areas": p.AssignedAreas,
		})
	default:
		writeUnauthorized(w, "authentication required")
	}
}

// ─── WebSocket tickets ────────────────────────────────────────────────────────
//
// Browsers cannot set an Authorization header on a WebSocket upgrade, so
// authenticated callers exchange their bearer token for a short-lived
// single-use ticket and present it as a query parameter.

type ticketEntry struct {
	principal auth.Principal
	expiresAt time.Time
}

// ticketStore holds pending WebSocket tickets. Tickets are consumed on
// first use; expired entries are swept by cleanTicketsLoop.
type ticketStore struct {
	mu      sync.Mutex
	entries map[string]ticketEntry
}

func newTicketStore() *ticketStore {
	return &ticketStore{entries: make(map[string]ticketEntry)}
}

const ticketBytes = 16

func (ts *ticketStore) issue(principal auth.Principal, ttl time.Duration) (string, error) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	ticket := hex.EncodeToString(b)

	ts.mu.Lock()
	ts.entries[ticket] = ticketEntry{
		principal: principal,
		expiresAt: time.Now().Add(ttl),
	}
	ts.mu.Unlock()

	return ticket, nil
}

// consume returns the principal behind a ticket, deleting it so it
// cannot be replayed.
func (ts *ticketStore) consume(ticket string) (auth.Principal, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.entries[ticket]
	if !ok {
		return nil, false
	}
	delete(ts.entries, ticket)

	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.principal, true
}

func (ts *ticketStore) sweep() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.entries {
		if now.After(entry.expiresAt) {
			delete(ts.entries, ticket)
		}
	}
}

// ticketSweepInterval is how often expired WebSocket tickets are purged.
const ticketSweepInterval = time.Minute

func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.sweep()
		}
	}
}

// handleWSTicket issues a single-use WebSocket ticket for the caller.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	principal := principalFromContext(r.Context())
	if principal == nil {
		writeUnauthorized(w, "authentication required")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.WSTicketTTL) * time.Second
	ticket, err := s.tickets.issue(principal, ttl)
	if err != nil {
		writeInternalError(w, "failed to issue ticket")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": s.secCfg.JWT.WSTicketTTL,
	})
}
