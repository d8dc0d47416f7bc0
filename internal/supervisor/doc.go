// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package supervisor runs Waypoint's long-lived components under a suture v4
supervisor tree.

The tree gives Erlang/OTP-style supervision: crashed services restart with
backoff, failures stay inside their layer, and shutdown is ordered and
bounded.

# Overview

Services are grouped into two layers for failure isolation:

	waypoint (root)
	├── messaging-layer
	│   ├── heartbeat-monitor   (presence.Monitor)
	│   ├── websocket-hub       (services.WebSocketHubService)
	│   └── nats-ingest         (services.NATSComponentsService, -tags nats)
	└── api-layer
	    └── http-server         (services.HTTPServerService)

This hierarchy ensures that:
  - A NATS outage never takes down the HTTP API or open sockets
  - A heartbeat monitor crash restarts the sweep without dropping rooms
  - An HTTP listener failure does not stop presence broadcasting

Supervisor events (service start, failure, restart, backoff) are logged
through sutureslog into the process's zerolog output.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddMessagingService(monitor)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh

# Configuration

TreeConfig controls restart behavior:

	config := supervisor.TreeConfig{
		FailureThreshold: 5.0,              // Failures before backoff
		FailureDecay:     30.0,             // Seconds for failures to decay
		FailureBackoff:   15 * time.Second, // Backoff duration
		ShutdownTimeout:  10 * time.Second, // Per-service shutdown timeout
	}

cmd/server sets ShutdownTimeout from SERVER_TIMEOUT so the HTTP drain and
the supervisor agree on how long a stop may take.

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Once the counter exceeds FailureThreshold the supervisor waits
FailureBackoff before the next restart:

	# Single crash - immediate restart
	hub exits early -> Counter: 1 -> Restart immediately

	# Rapid crashes - backoff triggered
	NATS start fails 5x in 10s -> Counter: 5+ -> Wait 15s before retry

# Service Interface

Every service implements suture.Service:

	type Service interface {
		Serve(ctx context.Context) error
	}

Return behavior:
  - Return nil: stopped cleanly, not restarted
  - Return error: crashed, restarted with backoff
  - Context canceled: shutdown requested, return promptly

# Shutdown

Canceling the context stops every service. The hub closes each socket with
1001 and empties the room registry. The heartbeat monitor stops sweeping.
Services that exceed ShutdownTimeout are listed by UnstoppedServiceReport:

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

# Thread Safety

SupervisorTree is safe for concurrent use. Services may be added from any
goroutine before or after ServeBackground.

# See Also

  - internal/supervisor/services: service wrappers
  - github.com/thejerf/suture/v4: underlying library
*/
package supervisor
