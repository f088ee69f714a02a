// FlickFeed - Personalized Movie & TV Feed Service
// Copyright 2026 FlickFeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flickfeed/flickfeed

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flickfeed/flickfeed/internal/config"
)

// Router builds the HTTP routing tree for the service.
type Router struct {
	cfg     config.ServerConfig
	handler *Handler
}

// NewRouter creates the router around a handler set.
func NewRouter(cfg config.ServerConfig, handler *Handler) *Router {
	return &Router{cfg: cfg, handler: handler}
}

// Setup configures all HTTP routes.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Operational endpoints, outside the API rate limit so monitoring is
	// never throttled out.
	r.Get("/health", rt.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rt.cfg.RateLimitReqs, rt.cfg.RateLimitWindow))

		r.Get("/feed/{userID}", rt.handler.GetFeed)
		r.Get("/feed/{userID}/genre/{genreID}", rt.handler.GetGenreRow)

		r.Get("/items/{kind}/{id}", rt.handler.GetItem)
		r.Post("/items/{kind}/{id}/interest", rt.handler.PostInterest)
	})

	return r
}
