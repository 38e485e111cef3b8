/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in error logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the launch and approval screens

ROUTE GROUPS:
  /api/calculate        Pure calculation
  /api/kpis             KPI listing
  /api/activities       Tier listing
  /api/launches/*       Launch lifecycle
  /api/tasklogs/*       Task log import
  /api/health           Liveness

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

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// AccessLog enables chi's request logger.
	AccessLog bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Post("/calculate", h.Calculate)
		r.Get("/kpis", h.ListKPIs)
		r.Get("/activities", h.ListActivities)

		// Launch routes
		r.Route("/launches", func(r chi.Router) {
			r.Get("/", h.ListLaunches)
			r.Post("/", h.SubmitLaunch)
			r.Get("/daily-limit", h.CheckDailyLimit)
			r.Get("/{id}", h.GetLaunch)
			r.Post("/{id}/validate", h.ValidateLaunch)
		})

		// Task log routes
		r.Route("/tasklogs", func(r chi.Router) {
			r.Post("/count", h.CountTasks)
		})
	})

	return r
}
