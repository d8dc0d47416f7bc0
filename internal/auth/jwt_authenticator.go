// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package auth verifies the identity of callers from JWTs minted by the
// trip-planning application. Waypoint never issues credentials to end users.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTAuthenticator implements Authenticator over a JWTManager.
type JWTAuthenticator struct {
	manager     *JWTManager
	tokenCookie string
	queryParam  string
}

// NewJWTAuthenticator returns an authenticator reading the Authorization
// header, then the "token" cookie, then queryParam when non-empty.
func NewJWTAuthenticator(manager *JWTManager, queryParam string) *JWTAuthenticator {
	return &JWTAuthenticator{
		manager:     manager,
		tokenCookie: "token",
		queryParam:  queryParam,
	}
}

// Authenticate extracts and validates the JWT from r.
func (a *JWTAuthenticator) Authenticate(_ context.Context, r *http.Request) (*Subject, error) {
	tokenStr := a.extractToken(r)
	if tokenStr == "" {
		return nil, ErrNoCredentials
	}

	claims, err := a.manager.ValidateToken(tokenStr)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredentials
		}
		return nil, ErrInvalidCredentials
	}
	return SubjectFromClaims(claims), nil
}

func (a *JWTAuthenticator) extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, token, ok := strings.Cut(authHeader, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}

	if cookie, err := r.Cookie(a.tokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	// Browsers cannot set headers on a WebSocket upgrade.
	if a.queryParam != "" {
		return r.URL.Query().Get(a.queryParam)
	}
	return ""
}
