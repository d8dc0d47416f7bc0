// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package main

import (
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/supervisor"
	"github.com/tomtom215/waypoint/internal/supervisor/services"
)

// AddNATSToSupervisor adds the ingest bridge to the messaging layer so it
// restarts independently of the heartbeat monitor and the hub.
//
// It is a no-op if natsComponents is nil (NATS disabled via config).
func AddNATSToSupervisor(tree *supervisor.SupervisorTree, natsComponents *NATSComponents) {
	if natsComponents == nil {
		return
	}
	tree.AddMessagingService(services.NewNATSComponentsService(natsComponents))
	logging.Info().Msg("NATS ingest added to supervisor tree (messaging layer)")
}
