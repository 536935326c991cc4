/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/catalog              Addition catalog
  /api/facilities/{id}/*    Month view, plans, staffing, setup
  /api/scenarios/*          Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// origins list allows any origin.
func NewRouter(h *Handler, origins ...string) *chi.Mux {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.GetCatalog)

		r.Route("/facilities/{facilityID}", func(r chi.Router) {
			r.Get("/months/{month}", h.SelectMonth)
			r.Get("/results", h.GetResults)
			r.Post("/reload", h.Reload)

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", h.GetPlans)
				r.Put("/", h.UpdatePlan)
				r.Post("/copy-previous", h.CopyPreviousMonth)
				r.Post("/save", h.SavePlans)
			})

			r.Get("/compliance", h.GetCompliance)
			r.Post("/compliance", h.ComputeCompliance)

			// Setup
			r.Post("/children", h.CreateChild)
			r.Post("/staff", h.CreateStaff)
			r.Post("/roster", h.CreateRosterEntry)
			r.Post("/records", h.CreateDailyRecord)
			r.Put("/billing-constants", h.SetBillingConstants)
			r.Post("/additions", h.EnableFacilityAddition)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Addition Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Addition Engine API</h1>
<ul>
<li><a href="/api/catalog">/api/catalog</a> - Addition catalog</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
<li>/api/facilities/{id}/months/{YYYY-MM} - Month results</li>
</ul>
</body>
</html>`))
	})

	return r
}
