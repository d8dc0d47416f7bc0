// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

func TestRequestID(t *testing.T) {
	var seen, correlation string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		correlation = logging.CorrelationIDFromContext(r.Context())
	}))

	t.Run("generates when absent", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("request id = %q, header = %q", seen, rec.Header().Get(RequestIDHeader))
		}
		if correlation == "" {
			t.Error("correlation id missing from context")
		}
	})

	t.Run("reuses upstream id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "edge-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "edge-123" {
			t.Errorf("request id = %q, want edge-123", seen)
		}
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 500))
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if len(seen) > maxRequestIDLen {
			t.Errorf("oversized request id kept (%d bytes)", len(seen))
		}
	})

	t.Run("replaces id with control characters", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc\x1b[31m")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen == "abc\x1b[31m" || seen == "" {
			t.Errorf("request id = %q, want generated", seen)
		}
	})

	if GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()) != "" {
		t.Error("GetRequestID() on bare context should be empty")
	}
}

func TestPrometheusMetrics_RoutePatternLabel(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/trips/{tripId}/presence", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/trips/{tripId}/presence", "418")
	before := testutil.ToFloat64(counter)

	for _, trip := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/trips/"+trip+"/presence", nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3 under one route pattern", got)
	}
}

func TestPrometheusMetrics_UnmatchedRoute(t *testing.T) {
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "200")
	before := testutil.ToFloat64(counter)

	PrometheusMetrics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/anything", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter delta = %v, want 1", got)
	}
}

func TestPrometheusMetrics_AllowsWebSocketUpgrade(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(PrometheusMetrics)
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("hi"))
		_ = conn.Close()
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Dial() through metrics middleware failed: %v", err)
	}
	defer conn.Close()

	if _, data, err := conn.ReadMessage(); err != nil || string(data) != "hi" {
		t.Errorf("ReadMessage() = %q, %v", data, err)
	}
}
