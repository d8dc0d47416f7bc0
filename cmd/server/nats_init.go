// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/membership"
	"github.com/tomtom215/waypoint/internal/notify"
	"github.com/tomtom215/waypoint/internal/presence"
)

// NATSComponents holds the ingest bridge: the optional embedded server and
// the subscriber feeding notifications and membership events into the
// process.
type NATSComponents struct {
	server     *notify.EmbeddedServer
	subscriber *notify.Subscriber

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// InitNATS builds the ingest bridge. It returns nil when NATS is disabled.
//
// Membership events are applied only when the casbin backend is active;
// with the HTTP backend they are acked and dropped.
func InitNATS(cfg *config.Config, registry *presence.Registry, members membership.Store) (*NATSComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS ingest disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	natsCfg := notify.ConfigFromNATS(&cfg.NATS)
	c := &NATSComponents{}

	if natsCfg.Embedded {
		srv, err := notify.NewEmbeddedServer(&natsCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		c.server = srv
		natsCfg.URL = srv.ClientURL()
		logging.Info().Str("url", natsCfg.URL).Str("store_dir", natsCfg.StoreDir).Msg("Embedded NATS server started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := notify.EnsureStream(ctx, &natsCfg); err != nil {
		c.shutdownServer(context.Background())
		return nil, fmt.Errorf("ensure ingest stream: %w", err)
	}

	var store notify.MemberStore
	if cs, ok := members.(*membership.CasbinStore); ok {
		store = cs
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	sub, err := notify.NewSubscriber(&natsCfg, notify.NewDispatcher(registry, store), logger)
	if err != nil {
		c.shutdownServer(context.Background())
		return nil, fmt.Errorf("create ingest subscriber: %w", err)
	}
	c.subscriber = sub

	logging.Info().
		Str("url", natsCfg.URL).
		Str("stream", natsCfg.StreamName).
		Str("subject_prefix", natsCfg.SubjectPrefix).
		Bool("member_events", store != nil).
		Msg("NATS ingest initialized")
	return c, nil
}

// Start launches the consume loop. It returns once the loop is running.
func (c *NATSComponents) Start(ctx context.Context) error {
	if c == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	if c.subscriber == nil {
		return errors.New("NATS subscriber not initialized")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go func(done chan struct{}) {
		defer close(done)
		if err := c.subscriber.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("NATS ingest stopped")
		}
	}(c.done)

	logging.Info().Msg("NATS ingest started")
	return nil
}

// Shutdown stops the consume loop, closes the subscriber and stops the
// embedded server last.
func (c *NATSComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	logging.Info().Msg("Shutting down NATS ingest...")

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Warn().Msg("NATS consume loop did not stop before deadline")
	}

	if err := c.subscriber.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing NATS subscriber")
	}
	c.shutdownServer(ctx)

	logging.Info().Msg("NATS shutdown complete")
}

func (c *NATSComponents) shutdownServer(ctx context.Context) {
	if c.server == nil {
		return
	}
	if err := c.server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Error shutting down NATS server")
	}
	logging.Info().Msg("Embedded NATS server stopped")
}

// IsRunning reports whether the consume loop is active.
func (c *NATSComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
