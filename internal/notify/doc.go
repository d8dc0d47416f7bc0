// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package notify is the NATS ingest bridge. CRUD services in other processes
publish mutation notifications and membership changes; the presence service
consumes them and fans notifications out to trip rooms.

Subjects (prefix defaults to "trips"):

	trips.<tripId>.notifications  {"tripId","excludeUserId"?,"message":{"type",...}}
	trips.<tripId>.members        {"action":"grant"|"revoke","tripId","userId","role"?}

Both live in one JetStream stream. Each topic has its own durable queue
consumer. Malformed payloads are acked and counted; store failures are
nacked for redelivery.

This is ingest, not cross-instance fan-out: each instance only delivers to
sockets it holds, so trips must be routed to one instance.

The transport needs -tags nats. Without it the constructors return
ErrNATSDisabled. Envelope decoding and Dispatcher are always built.
*/
package notify
