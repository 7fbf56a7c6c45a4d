/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for management frontends

ROUTE GROUPS:
  /api/cases/*                  Case lifecycle
  /api/actions/*                Milestone actions
  /api/organisations/{orgId}/*  Catalog, trigger, alert administration
  /api/alerts/*                 Alert acknowledgement

SECURITY NOTE:
  No authentication middleware currently. Callers are identified by the
  X-Organisation-ID and X-Actor-ID headers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organisation-ID", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Case lifecycle routes
		r.Route("/cases", func(r chi.Router) {
			r.Get("/", h.ListCases)
			r.Post("/", h.ReportCase)
			r.Get("/{id}", h.GetCase)
			r.Get("/{id}/transitions", h.GetTransitions)
			r.Post("/{id}/transitions", h.ApplyTransition)
			r.Get("/{id}/timeline", h.GetTimeline)
			r.Get("/{id}/actions", h.GetCaseActions)
			r.Get("/{id}/available-actions", h.GetAvailableActions)
			r.Put("/{id}/dates", h.UpdateDates)
		})

		// Milestone action routes
		r.Route("/actions", func(r chi.Router) {
			r.Put("/{id}", h.UpdateAction)
			r.Post("/{id}/reset", h.ResetAction)
		})

		// Organisation administration routes
		r.Route("/organisations/{orgId}", func(r chi.Router) {
			r.Get("/milestones", h.ListEffectiveMilestones)
			r.Put("/milestones/{key}", h.UpsertMilestone)
			r.Delete("/milestones/{key}", h.ResetMilestone)

			r.Get("/triggers", h.ListTriggers)
			r.Post("/triggers", h.CreateTrigger)
			r.Put("/triggers/{id}", h.UpdateTrigger)

			r.Get("/alerts", h.ListAlerts)
		})

		// Alert routes
		r.Route("/alerts", func(r chi.Router) {
			r.Post("/{id}/acknowledge", h.AcknowledgeAlert)
		})
	})

	return r
}
