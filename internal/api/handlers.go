// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/presence"
	"github.com/tomtom215/waypoint/internal/validation"
)

// maxNotificationBody caps ingest request bodies.
const maxNotificationBody = 256 << 10

// HeartbeatStatus reports whether the heartbeat loop is running.
type HeartbeatStatus interface {
	Running() bool
}

// ClientCounter reports live WebSocket clients.
type ClientCounter interface {
	GetClientCount() int
}

// Handler serves the REST endpoints.
type Handler struct {
	registry  *presence.Registry
	members   presence.MembershipChecker
	heartbeat HeartbeatStatus
	clients   ClientCounter
	startTime time.Time
}

// NewHandler wires the REST handlers. clients may be nil.
func NewHandler(registry *presence.Registry, members presence.MembershipChecker, heartbeat HeartbeatStatus, clients ClientCounter) *Handler {
	return &Handler{
		registry:  registry,
		members:   members,
		heartbeat: heartbeat,
		clients:   clients,
		startTime: time.Now(),
	}
}

// HealthLive reports that the process is serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// ReadyStatus is the readiness payload.
type ReadyStatus struct {
	Ready       bool `json:"ready"`
	Heartbeat   bool `json:"heartbeat"`
	Rooms       int  `json:"rooms"`
	Connections int  `json:"connections"`
	Clients     int  `json:"clients"`
}

// HealthReady reports 503 until the heartbeat monitor is running.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := ReadyStatus{
		Heartbeat:   h.heartbeat != nil && h.heartbeat.Running(),
		Rooms:       h.registry.RoomCount(),
		Connections: h.registry.ConnectionCount(),
	}
	if h.clients != nil {
		status.Clients = h.clients.GetClientCount()
	}
	status.Ready = status.Heartbeat

	rw := NewResponseWriter(w, r)
	if !status.Ready {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "heartbeat monitor not running", status)
		return
	}
	rw.Success(status)
}

// PresenceSnapshot is returned by GET /api/v1/trips/{tripId}/presence.
type PresenceSnapshot struct {
	TripID string            `json:"tripId"`
	Users  []presence.Record `json:"users"`
}

// TripPresence returns the deduplicated roster of a trip to one of its members.
func (h *Handler) TripPresence(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tripID := chi.URLParam(r, "tripId")
	subject := auth.GetSubject(r.Context())
	if subject == nil {
		rw.Error(http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	role, err := h.members.Role(r.Context(), tripID, subject.UserID)
	if err != nil {
		logging.Ctx(logging.ContextWithTrip(r.Context(), tripID)).Warn().Err(err).Msg("Membership lookup failed")
		rw.ServiceUnavailable("membership unavailable")
		return
	}
	if role == "" {
		rw.Forbidden("not a trip member")
		return
	}

	rw.Success(PresenceSnapshot{TripID: tripID, Users: h.registry.Snapshot(tripID)})
}

// NotifyRequest is the ingest body.
type NotifyRequest struct {
	ExcludeUserID string          `json:"excludeUserId" validate:"omitempty,opaqueid,max=128"`
	Message       json.RawMessage `json:"message"`
}

// notificationHeader is the part of a message the ingest checks.
type notificationHeader struct {
	Type   string `json:"type" validate:"required,eventtype,max=64"`
	TripID string `json:"tripId" validate:"omitempty,opaqueid,max=128"`
}

// NotifyResult is returned with 202.
type NotifyResult struct {
	Delivered int `json:"delivered"`
}

// IngestNotification fans a CRUD notification out to the trip's room.
func (h *Handler) IngestNotification(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tripID := chi.URLParam(r, "tripId")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxNotificationBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return
		}
		rw.BadRequest("failed to read body")
		return
	}
	var req NotifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr)
		return
	}

	header, msg := parseNotification(req.Message)
	if msg != "" {
		rw.BadRequest(msg)
		return
	}
	if verr := validation.ValidateStruct(header); verr != nil {
		rw.ValidationError(verr)
		return
	}
	if header.TripID != "" && header.TripID != tripID {
		rw.BadRequest("message tripId does not match route")
		return
	}
	if isReservedType(header.Type) {
		rw.BadRequest("message type is reserved")
		return
	}

	delivered := h.registry.NotifyRoom(tripID, req.ExcludeUserID, req.Message)
	metrics.RecordNotificationIngested("http")
	logging.Ctx(logging.ContextWithTrip(r.Context(), tripID)).Debug().
		Str("type", header.Type).
		Int("delivered", delivered).
		Msg("Notification ingested")

	rw.Accepted(NotifyResult{Delivered: delivered})
}

// parseNotification checks that raw is a JSON object with a string type.
func parseNotification(raw json.RawMessage) (*notificationHeader, string) {
	if len(raw) == 0 {
		return nil, "message is required"
	}
	parsed := gjson.ParseBytes(raw)
	if !gjson.ValidBytes(raw) || !parsed.IsObject() {
		return nil, "message must be a JSON object"
	}
	typ := parsed.Get("type")
	if typ.Type != gjson.String {
		return nil, "message.type must be a string"
	}
	header := &notificationHeader{Type: typ.Str}
	if trip := parsed.Get("tripId"); trip.Exists() {
		if trip.Type != gjson.String {
			return nil, "message.tripId must be a string"
		}
		header.TripID = trip.Str
	}
	return header, ""
}

// isReservedType reports types that only the server emits.
func isReservedType(typ string) bool {
	return typ == presence.TypePresence || typ == presence.TypePing || strings.HasPrefix(typ, "presence:")
}
