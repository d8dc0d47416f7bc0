// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/logging"
)

// Middleware enforces authentication on REST routes.
type Middleware struct {
	authenticator Authenticator
}

// NewMiddleware wraps authenticator.
func NewMiddleware(authenticator Authenticator) *Middleware {
	return &Middleware{authenticator: authenticator}
}

// Authenticate rejects unauthenticated requests and stores the Subject in
// the request context.
func (m *Middleware) Authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject, err := m.authenticator.Authenticate(r.Context(), r)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx := logging.ContextWithUser(WithSubject(r.Context(), subject), subject.UserID)
		next(w, r.WithContext(ctx))
	}
}

// RequireRole authenticates the request and requires role.
func (m *Middleware) RequireRole(role string, next http.HandlerFunc) http.HandlerFunc {
	return m.Authenticate(func(w http.ResponseWriter, r *http.Request) {
		if !GetSubject(r.Context()).HasRole(role) {
			writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
			return
		}
		next(w, r)
	})
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("Authentication failed")

	switch {
	case errors.Is(err, ErrNoCredentials):
		w.Header().Set("WWW-Authenticate", `Bearer realm="waypoint"`)
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
	case errors.Is(err, ErrExpiredCredentials):
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "credentials expired")
	default:
		writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credentials")
	}
}

// writeAuthError writes the api.APIResponse error shape without importing api.
func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Debug().Err(err).Msg("failed to write auth error")
	}
}
