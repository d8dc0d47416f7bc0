// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package notify

import (
	"context"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamConfig returns the JetStream stream holding both ingest topics.
// Presence consumers only care about recent changes, so messages age out.
func StreamConfig(cfg *Config) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name: cfg.StreamName,
		Subjects: []string{
			WildcardSubject(cfg.SubjectPrefix, TopicNotifications),
			WildcardSubject(cfg.SubjectPrefix, TopicMembers),
		},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    cfg.StreamMaxAge,
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}
}

// EnsureStream creates or updates the ingest stream. It is idempotent.
// Subscribers bind to this stream because wildcard topics cannot be
// auto-provisioned.
func EnsureStream(ctx context.Context, cfg *Config) error {
	nc, err := natsgo.Connect(cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	if _, err := js.CreateOrUpdateStream(ctx, StreamConfig(cfg)); err != nil {
		return fmt.Errorf("ensure stream %s: %w", cfg.StreamName, err)
	}
	return nil
}
