// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package websocket is the gorilla/websocket transport for trip presence.

It upgrades collaborators' browser connections, resolves their identity,
and adapts each socket to presence.Conn so the presence layer never sees
gorilla types.

Key Components:

  - Handler: upgrades GET /ws/trips/{tripId}, resolves the JWT identity and
    hands the socket to presence.Lifecycle for admission
  - Client: one socket, implementing presence.Conn with a buffered send queue
  - Hub: tracks every live Client so shutdown can close them with 1001

Architecture:

	Browser ──upgrade──▶ Handler ──Open──▶ presence.Lifecycle
	                        │                     │
	                        ▼                     ▼
	                       Hub              presence.Registry
	                  (all sockets)     (rooms, focus, fan-out)

Each client has two goroutines:
  - readPump: reads frames, refreshes liveness, applies the inbound rate
    limit and forwards text frames to Lifecycle.Message
  - writePump: owns all writes, including control pings and the final close frame

Connection Lifecycle:

 1. Origin is checked against the CORS allow-list; a missing Origin is refused
 2. The token is read from the Authorization header, cookie or query parameter
 3. The request is upgraded and the Client registered with the Hub
 4. Lifecycle.Open checks membership, joins the room and broadcasts the roster
 5. presence:update frames change the user's focus and rebroadcast
 6. On close, Lifecycle.Close removes the connection and tells the others

Usage Example - Server:

	hub := websocket.NewHub(registry)
	handler := websocket.NewHandler(websocket.HandlerConfig{
		Lifecycle:      lifecycle,
		Hub:            hub,
		Authenticator:  authenticator,
		AllowedOrigins: cfg.Security.CORSOrigins,
	})
	r.Handle("/ws/trips/{tripId}", handler)

Usage Example - Client (JavaScript):

	const ws = new WebSocket(`wss://presence.example/ws/trips/${tripId}?token=${jwt}`);

	ws.onmessage = (event) => {
		const msg = JSON.parse(event.data);
		if (msg.type === 'presence') {
			renderAvatars(msg.users);
		}
	};

	ws.send(JSON.stringify({type: 'presence:update', dayId: 'day-4', patternId: null}));

Close Codes:

  - 4401: no valid identity
  - 4403: not a member of the trip
  - 4408: evicted by the heartbeat monitor
  - 1001: server shutdown
  - 1009: inbound frame larger than presence.max_message_size
  - 1013: send queue overflow, or the hub is draining

Thread Safety:

  - Hub guards its client set with a mutex
  - Client.Send never blocks; on a full queue the registry purges the
    connection and closes it with 1013
  - Only writePump writes to the connection

Configuration:

Socket settings come from the presence config section:
  - write_wait: time allowed for one write
  - pong_wait: read deadline, extended by every frame and pong
  - heartbeat_interval: control ping period (capped below pong_wait)
  - max_message_size: inbound frame limit
  - inbound_rate, inbound_burst: per-connection token bucket

See Also:

  - github.com/gorilla/websocket: underlying WebSocket library
  - internal/presence: rooms, broadcasts and the heartbeat monitor
  - internal/api: the router that mounts Handler
*/
package websocket
