package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Liveness (no auth, no /api prefix so load balancers can reach it)
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		// Public pairing endpoints — the device being paired has no
		// credential yet. Verify is rate-limited per IP.
		r.With(s.rateLimitMiddleware).Post("/pairing/verify", s.handleVerifyPIN)
		r.Get("/pairing/{id}", s.handleGetPairingSession)

		// WebSocket upgrade (auth via one-time ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Authenticated routes (admin or client principal)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)

				// Registered flat — GET /pairing/{id} lives on the
				// public tier above, so a subrouter mount here would
				// collide with it.
				r.Post("/pairing", s.handleCreatePairingSession)
				r.Get("/pairing", s.handleListPairingSessions)
				r.Post("/pairing/{id}/complete", s.handleCompletePairing)
				r.Delete("/pairing/{id}", s.handleCancelPairingSession)

				r.Route("/clients", func(r chi.Router) {
					r.Get("/", s.handleListClients)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetClient)
						r.Put("/", s.handleUpdateClient)
						r.Delete("/", s.handleDeleteClient)
						r.Post("/enable", s.handleEnableClient)
						r.Post("/disable", s.handleDisableClient)
						r.Post("/credential", s.handleIssueCredential)
					})
				})

				r.Route("/tokens", func(r chi.Router) {
					r.Get("/", s.handleListTokens)
					r.Get("/stats", s.handleTokenStats)
					r.Post("/cleanup", s.handleCleanupTokens)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetToken)
						r.Delete("/", s.handleRevokeToken)
						r.Put("/areas", s.handleUpdateTokenAreas)
					})
				})

				r.Get("/areas", s.handleListAreas)
				r.Get("/audit", s.handleListAuditLogs)
				r.Get("/system/info", s.handleSystemInfo)
			})
		})
	})

	return r
}
