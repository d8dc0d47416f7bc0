// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	requestIDKey     contextKey = "request_id"
	tripIDKey        contextKey = "trip_id"
	userIDKey        contextKey = "user_id"
)

// GenerateCorrelationID returns the first 8 characters of a UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a copy of ctx carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID returns a copy of ctx carrying a fresh correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, correlationIDKey)
}

// ContextWithRequestID returns a copy of ctx carrying id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithTrip returns a copy of ctx scoped to tripID.
func ContextWithTrip(ctx context.Context, tripID string) context.Context {
	return context.WithValue(ctx, tripIDKey, tripID)
}

// ContextWithUser returns a copy of ctx carrying the authenticated user ID.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// Ctx returns the global logger with the request, trip and user fields
// found in ctx attached.
//
//	logging.Ctx(ctx).Info().Msg("connection admitted")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	for _, key := range []contextKey{correlationIDKey, requestIDKey, tripIDKey, userIDKey} {
		if v := stringValue(ctx, key); v != "" {
			logCtx = logCtx.Str(string(key), v)
		}
	}
	l := logCtx.Logger()
	return &l
}
