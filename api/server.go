/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:  Panic recovery (500 instead of crash)
  2. RequestID:  Unique ID per request for tracing
  3. RealIP:     Client address behind a proxy
  4. Logging:    One zerolog line per request
  5. Timeout:    Hard per-request deadline
  6. CORS:       Cross-origin requests for a frontend

ROUTE GROUPS:
  /api/calculations/*   Run, batch and fetch archived calculations
  /api/rulesets/*       Published tax-year constants
  /api/elections        Recognized elections
  /api/scenarios/*      Worked example requests
  /healthz              Liveness (pings the archive)
  /metrics              Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.loggingMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Run-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/calculations", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Post("/", h.Calculate)
			r.Post("/batch", h.CalculateBatch)
			r.Get("/{id}", h.GetRun)
		})

		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", h.ListRuleSets)
			r.Get("/{year}", h.GetRuleSet)
		})

		r.Get("/elections", h.ListElections)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/{id}", h.GetScenario)
			r.Post("/{id}/run", h.RunScenario)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.Logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
