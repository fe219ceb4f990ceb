/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/leaderboard/*    Public board
  /api/incentives/*     Rupee incentives
  /api/config/*         Scoring configuration
  /api/admin/*          Run triggers
  /api/runs             Run records
  /api/scenarios/*      Demo scenarios
  /metrics              Prometheus

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultOrigins are allowed when no origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/leaderboard", func(r chi.Router) {
			r.Get("/{month}", h.GetLeaderboard)
			r.Get("/{month}/{rm}", h.GetPublicRow)
		})

		r.Route("/incentives", func(r chi.Router) {
			r.Get("/{month}", h.ListIncentives)
			r.Get("/{month}/{rm}", h.GetIncentiveRow)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.ListConfig)
			r.Get("/export", h.ExportConfig)
			r.Post("/import", h.ImportConfig)
			r.Get("/{domain}", h.GetConfig)
			r.Put("/{domain}", h.PutConfig)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/run", h.TriggerRun)
		})

		r.Get("/runs", h.ListRuns)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
