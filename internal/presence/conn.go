// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import "errors"

// Close codes sent to clients. 4xxx codes are application defined.
const (
	// CloseUnauthenticated means no valid identity was presented at connect time.
	CloseUnauthenticated = 4401

	// CloseForbidden means the identity is valid but not a member of the trip.
	CloseForbidden = 4403

	// CloseHeartbeatTimeout means the connection was silent past the stale threshold.
	CloseHeartbeatTimeout = 4408

	// CloseInternalError is used when membership could not be resolved.
	CloseInternalError = 1011

	// CloseTryAgainLater is used when a send fails, usually a full outbound queue.
	CloseTryAgainLater = 1013
)

var (
	// ErrUnauthenticated is returned by Lifecycle.Open for a nil identity.
	ErrUnauthenticated = errors.New("presence: no identity")

	// ErrNotMember is returned by Lifecycle.Open when the user is not a trip member.
	ErrNotMember = errors.New("presence: not a trip member")
)

// Conn is one live client connection.
//
// The registry calls Send and Close while holding its lock, so both must
// return promptly without blocking on network I/O.
type Conn interface {
	// ID is unique per accepted connection and stable for its lifetime.
	ID() string

	// Send enqueues data for delivery. An error means the handle is dead.
	Send(data []byte) error

	// Close asks the transport to close with code and reason. Idempotent.
	Close(code int, reason string) error
}
