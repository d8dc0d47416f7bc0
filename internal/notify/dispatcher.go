// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// Rooms is satisfied by *presence.Registry.
type Rooms interface {
	NotifyRoom(tripID, excludeUserID string, msg interface{}) int
}

// MemberStore is satisfied by *membership.CasbinStore.
type MemberStore interface {
	Grant(tripID, userID, role string) error
	Revoke(tripID, userID string) (bool, error)
}

// Dispatcher applies decoded ingest messages. It is transport independent.
type Dispatcher struct {
	rooms   Rooms
	members MemberStore
	logger  zerolog.Logger
}

// NewDispatcher returns a dispatcher. members may be nil when the membership
// backend is not writable, in which case member events are dropped.
func NewDispatcher(rooms Rooms, members MemberStore) *Dispatcher {
	return &Dispatcher{
		rooms:   rooms,
		members: members,
		logger:  logging.WithComponent("notify"),
	}
}

// HandleNotification fans one notification payload out to its room.
func (d *Dispatcher) HandleNotification(_ context.Context, payload []byte) error {
	env, err := DecodeEnvelope(payload)
	if err != nil {
		return err
	}
	delivered := d.rooms.NotifyRoom(env.TripID, env.ExcludeUserID, env.Message)
	metrics.RecordNotificationIngested("nats")
	d.logger.Debug().
		Str("trip_id", env.TripID).
		Int("delivered", delivered).
		Msg("notification dispatched")
	return nil
}

// errNoStore marks member events arriving without a writable store.
var errNoStore = fmt.Errorf("%w: membership backend is read-only", ErrMalformed)

// HandleMember applies one membership payload. Store failures are returned
// unwrapped so the message is redelivered.
func (d *Dispatcher) HandleMember(_ context.Context, payload []byte) error {
	ev, err := DecodeMemberEvent(payload)
	if err != nil {
		return err
	}
	if d.members == nil {
		return errNoStore
	}

	switch ev.Action {
	case ActionGrant:
		if err := d.members.Grant(ev.TripID, ev.UserID, ev.Role); err != nil {
			return fmt.Errorf("grant %s in %s: %w", ev.UserID, ev.TripID, err)
		}
	case ActionRevoke:
		if _, err := d.members.Revoke(ev.TripID, ev.UserID); err != nil {
			return fmt.Errorf("revoke %s in %s: %w", ev.UserID, ev.TripID, err)
		}
	}
	metrics.RecordMembershipEvent(ev.Action)
	d.logger.Info().
		Str("action", ev.Action).
		Str("trip_id", ev.TripID).
		Str("user_id", ev.UserID).
		Str("role", ev.Role).
		Msg("membership updated")
	return nil
}

// dropReason labels a dropped message for metrics.
func dropReason(err error) string {
	if errors.Is(err, errNoStore) {
		return "read_only"
	}
	return "malformed"
}
