package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-installer/internal/auth"
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
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health and metrics (no auth required for basic monitoring)
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/ws-ticket", s.handleWSTicket)
			r.With(s.requirePermission(auth.PermTokenIssue)).Post("/auth/token", s.handleIssueToken)

			r.Route("/centrals/{centralID}/{direction}", func(r chi.Router) {
				r.With(s.requirePermission(auth.PermAvailabilityRead)).Get("/availability", s.handleAvailability)
				r.With(s.requirePermission(auth.PermAvailabilityRead)).Get("/menu", s.handleMenu)
				r.With(s.requirePermission(auth.PermPlacementRead)).Get("/devices/{deviceID}/placement", s.handlePlacement)
				r.With(s.requirePermission(auth.PermSnapshotRefresh)).Post("/invalidate", s.handleInvalidate)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"version":           s.version,
		"uptime_seconds":    int64(time.Since(s.startTime).Seconds()),
		"websocket_clients": s.hub.ClientCount(),
		"auth_enabled":      s.authEnabled(),
	})
}
