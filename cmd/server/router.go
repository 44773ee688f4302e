package main

import (
	"net/http"

	"github.com/aiadmin/ai-admin/internal/api"
	apiMiddleware "github.com/aiadmin/ai-admin/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// setupRouter builds the HTTP handler. /health and /metrics stay open; the
// /api routes require credentials when auth is configured.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	health := api.NewHealthHandler(app.queue, app.registry)
	r.Get("/health", health.Health)

	if app.metrics != nil {
		r.Handle("/metrics", app.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		if app.auth != nil {
			r.Use(app.auth.Authenticate)
		}
		api.RegisterRoutes(r, app.queue, app.archive)
	})

	return r
}
