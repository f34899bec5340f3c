// Package routes assembles the HTTP API.
package routes

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/ragqa/app"
	"github.com/upb/ragqa/handlers"
	"github.com/upb/ragqa/middleware"
	"github.com/upb/ragqa/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	var recorder middleware.RequestRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger, recorder))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Interaction-ID"},
		MaxAge:         300,
	}))

	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	health := handlers.NewHealthHandler(deps.Store, db, deps.Logger)
	if deps.Interactions != nil {
		health.WithInteractionLog(deps.Interactions)
	}
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	ask := handlers.NewAskHandler(deps.QA, deps.Logger)
	r.Post("/ask", ask.HandleAsk)

	if cfg.Observability.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if cfg.Admin.ReloadEnabled {
		reload := handlers.NewReloadHandler(deps, deps.Logger)
		r.Post("/admin/reload", reload.HandleReload)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}
