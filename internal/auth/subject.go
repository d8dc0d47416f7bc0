// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"context"
	"errors"
	"net/http"
)

// RoleService marks callers allowed to ingest notifications.
const RoleService = "service"

// Standard authentication errors
var (
	// ErrNoCredentials indicates no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidCredentials indicates credentials were invalid.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrExpiredCredentials indicates credentials have expired.
	ErrExpiredCredentials = errors.New("credentials expired")
)

// Authenticator resolves the caller of an HTTP request.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (*Subject, error)
}

// Subject is a verified caller.
type Subject struct {
	// UserID is the token's "sub" claim.
	UserID string `json:"userId"`

	// Name is the display name shown to other trip members.
	Name string `json:"name"`

	// Role is a service-level role. It is unrelated to trip membership roles.
	Role string `json:"role,omitempty"`
}

// HasRole reports whether the subject carries role.
func (s *Subject) HasRole(role string) bool {
	return s != nil && s.Role == role
}

// SubjectFromClaims converts validated claims.
func SubjectFromClaims(c *Claims) *Subject {
	return &Subject{UserID: c.Subject, Name: c.Name, Role: c.Role}
}

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// WithSubject returns a copy of ctx carrying s.
func WithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// GetSubject returns the subject stored by Authenticate middleware, or nil.
func GetSubject(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectContextKey).(*Subject)
	return s
}
