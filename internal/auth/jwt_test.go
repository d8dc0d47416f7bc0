// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
)

const testSecret = "this_is_a_very_long_secret_key_with_32_plus_characters"

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	return m
}

func TestNewJWTManager(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.SecurityConfig
		wantErr bool
	}{
		{"valid secret", &config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour}, false},
		{"empty secret", &config.SecurityConfig{SessionTimeout: time.Hour}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewJWTManager(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewJWTManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	token, err := m.GenerateToken("u-alice", "Alice", "")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "u-alice" || claims.Name != "Alice" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Error("expected a jti")
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	m := newTestManager(t)

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewJWTManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 40), SessionTimeout: time.Hour})
		token, _ := other.GenerateToken("u", "U", "")
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected signature error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		token, _ := m.GenerateTokenWithTTL("u", "U", "", -time.Minute)
		_, err := m.ValidateToken(token)
		if !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			Name:             "Mallory",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u-mallory"},
		})
		signed, _ := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := m.ValidateToken(signed); err == nil {
			t.Error("expected none algorithm to be rejected")
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		token, _ := m.GenerateToken("", "Nobody", "")
		if _, err := m.ValidateToken(token); err == nil {
			t.Error("expected missing subject to be rejected")
		}
	})
}

func TestJWTAuthenticator_Sources(t *testing.T) {
	m := newTestManager(t)
	token, _ := m.GenerateToken("u-bob", "Bob", "")
	a := NewJWTAuthenticator(m, "token")

	tests := []struct {
		name    string
		prepare func(r *http.Request)
		wantErr error
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, nil},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, nil},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: token}) }, nil},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=" + token }, nil},
		{"nothing", func(*http.Request) {}, ErrNoCredentials},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws/trips/t1", nil)
			tt.prepare(r)
			subject, err := a.Authenticate(context.Background(), r)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}
			if subject.UserID != "u-bob" || subject.Name != "Bob" {
				t.Errorf("subject = %+v", subject)
			}
		})
	}
}

func TestJWTAuthenticator_QueryDisabled(t *testing.T) {
	m := newTestManager(t)
	token, _ := m.GenerateToken("u-bob", "Bob", "")
	a := NewJWTAuthenticator(m, "")

	r := httptest.NewRequest(http.MethodGet, "/ws/trips/t1?token="+token, nil)
	if _, err := a.Authenticate(context.Background(), r); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("error = %v, want ErrNoCredentials", err)
	}
}

func TestJWTAuthenticator_Expired(t *testing.T) {
	m := newTestManager(t)
	token, _ := m.GenerateTokenWithTTL("u", "U", "", -time.Second)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	if _, err := NewJWTAuthenticator(m, "").Authenticate(context.Background(), r); !errors.Is(err, ErrExpiredCredentials) {
		t.Errorf("error = %v, want ErrExpiredCredentials", err)
	}
}

func TestMiddleware_RequireRole(t *testing.T) {
	m := newTestManager(t)
	mw := NewMiddleware(NewJWTAuthenticator(m, ""))
	serviceToken, _ := m.GenerateToken("svc-crud", "CRUD", RoleService)
	userToken, _ := m.GenerateToken("u-alice", "Alice", "")

	var seen *Subject
	handler := mw.RequireRole(RoleService, func(w http.ResponseWriter, r *http.Request) {
		seen = GetSubject(r.Context())
		w.WriteHeader(http.StatusAccepted)
	})

	tests := []struct {
		name       string
		token      string
		wantStatus int
	}{
		{"service role", serviceToken, http.StatusAccepted},
		{"plain user", userToken, http.StatusForbidden},
		{"anonymous", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodPost, "/api/v1/trips/t1/notifications", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler(w, r)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusAccepted && (seen == nil || seen.UserID != "svc-crud") {
				t.Errorf("subject = %+v", seen)
			}
			if tt.wantStatus != http.StatusAccepted && !strings.Contains(w.Body.String(), `"success":false`) {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}
