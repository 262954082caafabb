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

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication; the ticket carries the
			// caller's identity into the WebSocket connection.
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Reader endpoints
			r.Route("/readers", func(r chi.Router) {
				r.Get("/", s.handleListReaders)
				r.Get("/unbound", s.handleListUnbound)

				r.Group(func(r chi.Router) {
					r.Use(s.requireManager)
					r.Post("/", s.handleCreateReader)
					r.Post("/pair", s.handlePairReader)
				})

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetReader)
					r.Post("/state", s.handleSetReaderState)
					r.Post("/identify", s.handleIdentifyReader)
					r.Post("/help/clear", s.handleClearHelp)
					r.With(s.requireManager).Put("/name", s.handleRenameReader)
					r.With(s.requireManager).Put("/binding", s.handleBindReader)
				})
			})

			// Equipment availability rollup and binding teardown
			r.Get("/equipment/{id}/availability", s.handleAvailability)
			r.With(s.requireManager).Delete("/equipment/{id}/bindings", s.handleUnbindEquipment)

			// Trust anchor (manager-only writes)
			r.Route("/trust-anchor", func(r chi.Router) {
				r.Use(s.requireManager)
				r.Get("/", s.handleGetTrustAnchor)
				r.Put("/", s.handleSetTrustAnchor)
			})

			// Audit trail
			r.Get("/audit-logs", s.handleListAuditLogs)
		})

		// WebSocket upgrade authenticates with a single-use ticket from
		// POST /auth/ws-ticket; browsers cannot attach a bearer header to
		// the upgrade request.
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
