// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package middleware provides HTTP middleware shared by the REST routes and the
WebSocket upgrade route.

Key Components:

  - RequestID: X-Request-ID propagation plus request and correlation IDs in
    the logging context
  - PrometheusMetrics: request counts and latency labelled by chi route pattern

Both wrappers keep http.Hijacker working so WebSocket upgrades pass through.

Middleware Stack:

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
