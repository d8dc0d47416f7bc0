// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build !nats

package main

import (
	"github.com/tomtom215/waypoint/internal/supervisor"
)

// AddNATSToSupervisor is a no-op for non-NATS builds.
func AddNATSToSupervisor(_ *supervisor.SupervisorTree, _ *NATSComponents) {}
