// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package websocket

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/presence"
)

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Lifecycle      *presence.Lifecycle
	Hub            *Hub
	Authenticator  auth.Authenticator
	AllowedOrigins []string
	Client         ClientOptions
}

// Handler serves GET /ws/trips/{tripId}.
//
// The socket is always upgraded before admission so that rejections can be
// reported as close codes: 4401 without a valid identity, 4403 for users
// outside the trip.
type Handler struct {
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{cfg: cfg}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      h.checkOrigin,
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")
	if tripID == "" {
		http.Error(w, "missing trip id", http.StatusBadRequest)
		return
	}

	ctx := logging.ContextWithTrip(r.Context(), tripID)
	identity := h.identify(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(h.cfg.Hub, conn, tripID, h.cfg.Client)
	go client.writePump()

	if !h.cfg.Hub.Register(client) {
		_ = client.Close(websocket.CloseTryAgainLater, "server shutting down")
		return
	}

	if err := h.cfg.Lifecycle.Open(ctx, tripID, identity, client); err != nil {
		h.cfg.Hub.Unregister(client)
		if !errors.Is(err, presence.ErrUnauthenticated) && !errors.Is(err, presence.ErrNotMember) {
			logging.Ctx(ctx).Warn().Err(err).Msg("websocket admission failed")
		}
		return
	}

	go client.readPump(h.cfg.Lifecycle)
}

// identify returns nil when the request carries no valid credentials.
func (h *Handler) identify(r *http.Request) *presence.Identity {
	if h.cfg.Authenticator == nil {
		return nil
	}
	subject, err := h.cfg.Authenticator.Authenticate(r.Context(), r)
	if err != nil || subject == nil {
		return nil
	}
	return &presence.Identity{UserID: subject.UserID, Name: subject.Name}
}

// checkOrigin rejects a missing Origin. Browsers always send one.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds length.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
