// Watchpost - Watch Session Analytics for Video Players
// Copyright 2026 Watchpost contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchpost/watchpost/internal/middleware"
)

// Router wires handlers into the HTTP route tree.
type Router struct {
	handler *Handler
}

// NewRouter creates the API router.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup configures all HTTP routes using Chi.
//
// Route tree:
//
//	GET  /metrics                          Prometheus exposition (if enabled)
//	GET  /api/v1/health[,/live,/ready]     health probes, no auth, no rate limit
//	POST /api/v1/events                    ingest a watch event
//	GET  /api/v1/events                    list events (time-ordered)
//	GET  /api/v1/events/{event_id}         fetch one event
//	POST /api/v1/sessions                  pre-register a watch session
//	GET  /api/v1/sessions                  list watch sessions
//	GET  /api/v1/sessions/{session_id}     fetch one session
//	GET  /api/v1/stats/top                 most-watched videos
//	GET  /api/v1/stats/video/{video_id}    per-video rollup
func (router *Router) Setup() http.Handler {
	cfg := router.handler.cfg
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Health probes stay unauthenticated and unthrottled so orchestrators
	// can always reach them.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.API.RateLimitReqs, cfg.API.RateLimitWindow))
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.ViewerIdentity(cfg.Security.JWTSecret, cfg.Security.RequireAuth))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", router.handler.IngestEvent)
			r.Get("/", router.handler.ListEvents)
			r.Get("/{event_id}", router.handler.GetEvent)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", router.handler.CreateSession)
			r.Get("/", router.handler.ListSessions)
			r.Get("/{session_id}", router.handler.GetSession)
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/top", router.handler.TopVideos)
			r.Get("/video/{video_id}", router.handler.VideoStats)
		})
	})

	return r
}
