// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package main is the entry point for the Waypoint presence server.

Waypoint keeps track of who is looking at which trip and which day of it,
and fans out change notifications from the trip-planning CRUD services to
every collaborator's open socket.

# Application Architecture

	RootSupervisor ("waypoint")
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Heartbeat monitor (15s sweep, 45s eviction)
	│   ├── WebSocket Hub (closes sockets with 1001 on shutdown)
	│   └── NATS ingest (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (health, presence, ingest, /ws/trips/{tripId}, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, optional YAML, environment variables
 2. Logging: zerolog with JSON/console output modes
 3. Membership: casbin policy store or remote membership service
 4. Presence: registry, lifecycle, heartbeat monitor, WebSocket hub
 5. Authentication: HS256 JWT verification
 6. Router: chi with CORS, rate limiting and Prometheus middleware
 7. NATS ingest (optional)
 8. Supervisor tree

# Configuration

	PORT=8340
	JWT_SECRET=<32+ chars>            # shared with the token issuer
	CORS_ORIGINS=https://app.example  # also checked against WebSocket Origin
	HEARTBEAT_INTERVAL=15s
	PRESENCE_STALE_AFTER=45s
	MEMBERSHIP_BACKEND=casbin         # or http
	MEMBERSHIP_POLICY_PATH=/etc/waypoint/policy.csv
	MEMBERSHIP_SERVICE_URL=http://trips:8080
	NATS_ENABLED=false
	NATS_URL=nats://127.0.0.1:4222
	NATS_EMBEDDED=true
	LOG_LEVEL=info
	LOG_FORMAT=json

# Build Tags

	go build ./cmd/server              # Standard build
	go build -tags nats ./cmd/server   # Enable the NATS ingest bridge

# Signal Handling

On SIGINT or SIGTERM the supervisor tree stops. The HTTP server stops
accepting requests, the hub closes every socket with 1001 and empties the
registry, the heartbeat monitor stops, and services that fail to stop in
time are reported.
*/
package main
