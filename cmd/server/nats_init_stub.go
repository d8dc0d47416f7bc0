// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/membership"
	"github.com/tomtom215/waypoint/internal/presence"
)

// NATSComponents is a stub for non-NATS builds.
type NATSComponents struct{}

// InitNATS returns nil. Enabling NATS without the build tag is logged, not
// fatal, so the presence service still starts.
func InitNATS(cfg *config.Config, _ *presence.Registry, _ membership.Store) (*NATSComponents, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

// Start is a no-op stub for non-NATS builds.
func (c *NATSComponents) Start(_ context.Context) error {
	return nil
}

// Shutdown is a no-op stub for non-NATS builds.
func (c *NATSComponents) Shutdown(_ context.Context) {}

// IsRunning returns false for non-NATS builds.
func (c *NATSComponents) IsRunning() bool {
	return false
}
