// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router wires the handlers onto a chi router.
type Router struct {
	handler    *Handler
	middleware *Middleware
}

// NewRouter creates a Router.
func NewRouter(handler *Handler, middleware *Middleware) *Router {
	if middleware == nil {
		middleware = NewMiddleware(nil)
	}
	return &Router{handler: handler, middleware: middleware}
}

// Setup builds the http.Handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// Health probes are not rate limited.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(Metrics)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())

		// The upgrade needs the raw ResponseWriter.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(Metrics)

			r.Route("/engine", func(r chi.Router) {
				r.Post("/start", h.EngineStart)
				r.Post("/stop", h.EngineStop)
				r.Post("/pause", h.EnginePause)
				r.Post("/resume", h.EngineResume)
				r.Post("/reset", h.EngineReset)
				r.Post("/load", h.EngineLoad)
				r.Get("/status", h.EngineStatus)
			})

			r.Get("/users", h.Users)
			r.Get("/users/{id}", h.UserByID)
			r.Get("/incidents", h.Incidents)
			r.Get("/events", h.Events)

			// CSV exports grow with history; gzip them when the client allows.
			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Compress(5, "text/csv"))
				r.Get("/incidents/export", h.IncidentsExport)
				r.Get("/events/export", h.EventsExport)
			})
			r.Get("/stats", h.Stats)
			r.Get("/checkpoints", h.Checkpoints)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}
