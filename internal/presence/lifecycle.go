// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/validation"
)

// MembershipChecker resolves a user's role in a trip. An empty role with a
// nil error means the user is not a member.
type MembershipChecker interface {
	Role(ctx context.Context, tripID, userID string) (string, error)
}

// Lifecycle is invoked by the transport on open, message and close.
type Lifecycle struct {
	registry *Registry
	members  MembershipChecker
	logger   zerolog.Logger
}

// NewLifecycle returns a Lifecycle admitting members resolved by members.
func NewLifecycle(registry *Registry, members MembershipChecker) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		members:  members,
		logger:   logging.WithComponent("lifecycle"),
	}
}

// Registry returns the registry this lifecycle drives.
func (l *Lifecycle) Registry() *Registry {
	return l.registry
}

// Open admits conn to tripID or closes it.
//
// A nil identity closes with CloseUnauthenticated, a non-member with
// CloseForbidden, and a membership lookup failure with CloseInternalError.
// Admitted connections join with no day or pattern selected, and the room
// receives a fresh roster.
func (l *Lifecycle) Open(ctx context.Context, tripID string, id *Identity, conn Conn) error {
	if id == nil || id.UserID == "" {
		_ = conn.Close(CloseUnauthenticated, "unauthenticated")
		metrics.RecordAdmission(metrics.AdmissionUnauthenticated)
		return ErrUnauthenticated
	}

	role, err := l.members.Role(ctx, tripID, id.UserID)
	if err != nil {
		_ = conn.Close(CloseInternalError, "membership unavailable")
		metrics.RecordAdmission(metrics.AdmissionError)
		return fmt.Errorf("membership lookup for trip %s: %w", tripID, err)
	}
	if role == "" {
		_ = conn.Close(CloseForbidden, "not a trip member")
		metrics.RecordAdmission(metrics.AdmissionForbidden)
		return ErrNotMember
	}

	l.registry.Join(tripID, conn, Record{UserID: id.UserID, Name: id.Name})
	metrics.RecordAdmission(metrics.AdmissionAccepted)
	l.logger.Debug().
		Str("trip_id", tripID).
		Str("user_id", id.UserID).
		Str("conn_id", conn.ID()).
		Str("role", role).
		Msg("connection admitted")

	l.registry.BroadcastPresence(tripID)
	return nil
}

// Message applies one inbound text frame. Anything other than a well-formed
// presence:update is dropped; the connection is never closed here. The
// patternId key must be present, as a string or null; a frame without it
// is dropped as malformed.
func (l *Lifecycle) Message(tripID string, conn Conn, data []byte) {
	upd, reason := parsePresenceUpdate(data)
	if reason != "" {
		metrics.RecordInboundDropped(reason)
		l.logger.Trace().Str("conn_id", conn.ID()).Str("reason", reason).Msg("dropped inbound frame")
		return
	}

	if !l.registry.Update(tripID, conn.ID(), upd.DayID, upd.PatternID) {
		metrics.RecordInboundDropped(metrics.DropNotMember)
		return
	}
	metrics.PresenceInboundAccepted.Inc()
	l.registry.BroadcastPresence(tripID)
}

// Close removes conn from tripID and tells the remaining members. A
// connection already purged by a sweep or a failed send was announced then,
// so nothing is broadcast for it here.
func (l *Lifecycle) Close(tripID string, conn Conn) {
	if !l.registry.Leave(tripID, conn.ID()) {
		return
	}
	l.logger.Debug().Str("trip_id", tripID).Str("conn_id", conn.ID()).Msg("connection left")
	l.registry.BroadcastPresence(tripID)
}

// parsePresenceUpdate returns the update or a drop reason.
func parsePresenceUpdate(data []byte) (*presenceUpdate, string) {
	if !gjson.ValidBytes(data) {
		return nil, metrics.DropInvalidJSON
	}
	if typ := gjson.GetBytes(data, "type"); typ.Type != gjson.String || typ.Str != TypePresenceUpdate {
		return nil, metrics.DropUnknownType
	}
	if day := gjson.GetBytes(data, "dayId"); day.Type != gjson.String {
		return nil, metrics.DropInvalidShape
	}
	// patternId is required but may be null.
	if pat := gjson.GetBytes(data, "patternId"); !pat.Exists() || (pat.Type != gjson.String && pat.Type != gjson.Null) {
		return nil, metrics.DropInvalidShape
	}

	var upd presenceUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		return nil, metrics.DropInvalidJSON
	}
	if verr := validation.ValidateStruct(&upd); verr != nil {
		return nil, metrics.DropInvalidShape
	}
	return &upd, ""
}
