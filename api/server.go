/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request, echoed in 500 logs
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/resources/*      Utilization and rebalancing
  /api/cost-control/*   Analytics, EAC history, cashflows, alerts
  /api/scenarios/*      Demo scenarios (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Resource routes
		r.Route("/resources", func(r chi.Router) {
			r.Get("/", h.ListResources)
			r.Get("/utilization", h.GetUtilization)
			r.Get("/rebalance", h.GetRebalance)
		})

		// Cost control routes
		r.Route("/cost-control", func(r chi.Router) {
			r.Get("/projects", h.ListProjects)
			r.Get("/analytics", h.GetAnalytics)
			r.Get("/eac-history", h.GetEACHistory)
			r.Post("/eac-history", h.CreateSnapshot)
			r.Post("/cashflows", h.CreateCashflow)
			r.Patch("/cashflows/{id}", h.UpdateCashflow)
			r.Post("/alerts/{id}/acknowledge", h.AcknowledgeAlert)
			r.Post("/alerts/{id}/resolve", h.ResolveAlert)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
