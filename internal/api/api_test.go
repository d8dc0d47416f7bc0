// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/presence"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type recordingConn struct {
	id     string
	mu     sync.Mutex
	frames []string
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(data))
	return nil
}

func (c *recordingConn) Close(int, string) error { return nil }

func (c *recordingConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

type members struct {
	roles map[string]map[string]string
	err   error
}

func (m *members) Role(_ context.Context, tripID, userID string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.roles[tripID][userID], nil
}

type heartbeat bool

func (h heartbeat) Running() bool { return bool(h) }

type testAPI struct {
	server   *httptest.Server
	registry *presence.Registry
	members  *members
	jwt      *auth.JWTManager
	c1, c2   *recordingConn
}

// newTestAPI serves a registry where trip T holds u1 (c1) and u2 (c2).
func newTestAPI(t *testing.T, running bool, mwCfg *ChiMiddlewareConfig) *testAPI {
	t.Helper()
	jwtManager, err := auth.NewJWTManager(&config.SecurityConfig{
		JWTSecret:      "api-test-secret-at-least-32-bytes",
		SessionTimeout: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	registry := presence.NewRegistry()
	c1, c2 := &recordingConn{id: "c1"}, &recordingConn{id: "c2"}
	registry.Join("T", c1, presence.Record{UserID: "u1", Name: "Uma"})
	registry.Join("T", c2, presence.Record{UserID: "u2", Name: "Vic"})

	m := &members{roles: map[string]map[string]string{"T": {"u1": "owner", "u2": "viewer"}}}
	handler := NewHandler(registry, m, heartbeat(running), nil)
	authMW := auth.NewMiddleware(auth.NewJWTAuthenticator(jwtManager, ""))
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })

	srv := httptest.NewServer(NewRouter(handler, authMW, NewChiMiddleware(mwCfg), ws).SetupChi())
	t.Cleanup(srv.Close)
	return &testAPI{server: srv, registry: registry, members: m, jwt: jwtManager, c1: c1, c2: c2}
}

func (a *testAPI) token(t *testing.T, user, role string) string {
	t.Helper()
	tok, err := a.jwt.GenerateToken(user, user, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

func (a *testAPI) do(t *testing.T, method, path, token, body string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out APIResponse
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("response is not an APIResponse: %v\n%s", err, raw)
		}
	}
	return resp, out
}

func TestHealthLive(t *testing.T) {
	a := newTestAPI(t, true, nil)
	resp, body := a.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("status = %d, success = %v", resp.StatusCode, body.Success)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		want    int
	}{
		{"heartbeat running", true, http.StatusOK},
		{"heartbeat stopped", false, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, tt.running, nil)
			resp, body := a.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.running {
				data, _ := body.Data.(map[string]interface{})
				if data["rooms"] != float64(1) || data["connections"] != float64(2) {
					t.Errorf("data = %v, want 1 room and 2 connections", data)
				}
			} else if body.Error == nil || body.Error.Code != ErrCodeServiceUnavailable {
				t.Errorf("error = %+v", body.Error)
			}
		})
	}
}

func TestTripPresence(t *testing.T) {
	a := newTestAPI(t, true, nil)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"member", a.token(t, "u2", ""), http.StatusOK},
		{"non-member", a.token(t, "u9", ""), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := a.do(t, http.MethodGet, "/api/v1/trips/T/presence", tt.token, "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			data, _ := body.Data.(map[string]interface{})
			users, _ := data["users"].([]interface{})
			if data["tripId"] != "T" || len(users) != 2 {
				t.Errorf("data = %v", data)
			}
		})
	}
}

func TestTripPresence_MembershipError(t *testing.T) {
	a := newTestAPI(t, true, nil)
	a.members.err = errors.New("backend down")
	resp, _ := a.do(t, http.MethodGet, "/api/v1/trips/T/presence", a.token(t, "u1", ""), "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestIngestNotification_Delivers(t *testing.T) {
	a := newTestAPI(t, true, nil)
	body := `{"excludeUserId":"u1","message":{"type":"day:created","tripId":"T","entityId":"d1"}}`

	resp, out := a.do(t, http.MethodPost, "/api/v1/trips/T/notifications", a.token(t, "crud", auth.RoleService), body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 (%+v)", resp.StatusCode, out.Error)
	}
	data, _ := out.Data.(map[string]interface{})
	if data["delivered"] != float64(1) {
		t.Errorf("delivered = %v, want 1", data["delivered"])
	}
	if len(a.c1.sent()) != 0 {
		t.Error("excluded user received the notification")
	}
	got := a.c2.sent()
	if len(got) != 1 || got[0] != `{"type":"day:created","tripId":"T","entityId":"d1"}` {
		t.Errorf("c2 frames = %v", got)
	}
}

func TestIngestNotification_Rejects(t *testing.T) {
	a := newTestAPI(t, true, nil)
	service := a.token(t, "crud", auth.RoleService)

	tests := []struct {
		name   string
		token  string
		body   string
		status int
	}{
		{"no token", "", `{"message":{"type":"day:created"}}`, http.StatusUnauthorized},
		{"non-service role", a.token(t, "u1", ""), `{"message":{"type":"day:created"}}`, http.StatusForbidden},
		{"invalid json", service, `{`, http.StatusBadRequest},
		{"missing message", service, `{}`, http.StatusBadRequest},
		{"message not object", service, `{"message":[1]}`, http.StatusBadRequest},
		{"numeric type", service, `{"message":{"type":7}}`, http.StatusBadRequest},
		{"bad type format", service, `{"message":{"type":"Day Created"}}`, http.StatusUnprocessableEntity},
		{"trip mismatch", service, `{"message":{"type":"day:created","tripId":"X"}}`, http.StatusBadRequest},
		{"reserved type", service, `{"message":{"type":"presence:update"}}`, http.StatusBadRequest},
		{"blank exclude", service, `{"excludeUserId":"  ","message":{"type":"day:created"}}`, http.StatusUnprocessableEntity},
		{"too large", service, `{"message":{"type":"day:created","entity":"` + strings.Repeat("x", maxNotificationBody) + `"}}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := a.do(t, http.MethodPost, "/api/v1/trips/T/notifications", tt.token, tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", resp.StatusCode, tt.status, out.Error)
			}
		})
	}
	if len(a.c1.sent())+len(a.c2.sent()) != 0 {
		t.Error("rejected notifications reached the room")
	}
}

func TestIngestNotification_EmptyRoom(t *testing.T) {
	a := newTestAPI(t, true, nil)
	resp, out := a.do(t, http.MethodPost, "/api/v1/trips/empty/notifications",
		a.token(t, "crud", auth.RoleService), `{"message":{"type":"trip:updated"}}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if data, _ := out.Data.(map[string]interface{}); data["delivered"] != float64(0) {
		t.Errorf("delivered = %v, want 0", data["delivered"])
	}
	if a.registry.Has("empty") {
		t.Error("ingest must not create rooms")
	}
}

func TestWebSocketRouteAndMetrics(t *testing.T) {
	a := newTestAPI(t, true, nil)
	resp, _ := a.do(t, http.MethodGet, "/ws/trips/T", "", "")
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("ws route status = %d, want delegated handler", resp.StatusCode)
	}
	resp, _ = a.do(t, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/metrics status = %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	a := newTestAPI(t, true, cfg)
	tok := a.token(t, "u1", "")

	var last int
	for i := 0; i < 3; i++ {
		resp, _ := a.do(t, http.MethodGet, "/api/v1/trips/T/presence", tok, "")
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}

	cfg = DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	a = newTestAPI(t, true, cfg)
	for i := 0; i < 3; i++ {
		if resp, _ := a.do(t, http.MethodGet, "/api/v1/trips/T/presence", tok, ""); resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d with limiting disabled: status %d", i, resp.StatusCode)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"http://planner.test"}
	a := newTestAPI(t, true, cfg)

	req, _ := http.NewRequest(http.MethodOptions, a.server.URL+"/api/v1/trips/T/presence", nil)
	req.Header.Set("Origin", "http://planner.test")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://planner.test" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	cfg := ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{
		CORSOrigins:     []string{"https://a.example"},
		RateLimitReqs:   7,
		RateLimitWindow: 2 * time.Second,
	})
	if cfg.RateLimitRequests != 7 || cfg.RateLimitWindow != 2*time.Second || cfg.CORSAllowedOrigins[0] != "https://a.example" {
		t.Errorf("cfg = %+v", cfg)
	}
	cfg = ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{})
	if cfg.RateLimitRequests != 100 || cfg.RateLimitWindow != time.Minute {
		t.Errorf("zero values should keep defaults: %+v", cfg)
	}
}
