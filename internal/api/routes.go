package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes (bearer JWT)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.secret))
			r.Get("/sync/pull", h.SyncPull)
			r.Post("/sync/push", h.SyncPush)
		})
	})

	return r
}
