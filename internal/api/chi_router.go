// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package api exposes the REST and WebSocket routes over a chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/middleware"
)

// Router assembles handlers and middleware into an http.Handler.
type Router struct {
	handler       *Handler
	auth          *auth.Middleware
	chiMiddleware *ChiMiddleware
	websocket     http.Handler
}

// NewRouter creates a router. A nil mw uses defaults.
func NewRouter(handler *Handler, authMW *auth.Middleware, mw *ChiMiddleware, ws http.Handler) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, auth: authMW, chiMiddleware: mw, websocket: ws}
}

// chiMiddleware adapts http.HandlerFunc middleware to chi's signature.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// SetupChi configures every route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(RateLimitHealth))
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1/trips/{tripId}", func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.With(router.chiMiddleware.RateLimit(), chiMiddleware(router.auth.Authenticate)).
			Get("/presence", router.handler.TripPresence)
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitIngest), chiMiddleware(router.requireService)).
			Post("/notifications", router.handler.IngestNotification)
	})

	if router.websocket != nil {
		r.With(router.chiMiddleware.RateLimitCustom(RateLimitWebSocket)).
			Handle("/ws/trips/{tripId}", router.websocket)
	}

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (router *Router) requireService(next http.HandlerFunc) http.HandlerFunc {
	return router.auth.RequireRole(auth.RoleService, next)
}
