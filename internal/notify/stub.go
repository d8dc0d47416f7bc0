// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build !nats

package notify

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
)

// EmbeddedServer is unavailable without -tags nats.
type EmbeddedServer struct{}

// NewEmbeddedServer returns ErrNATSDisabled.
func NewEmbeddedServer(*Config) (*EmbeddedServer, error) { return nil, ErrNATSDisabled }

// ClientURL returns "".
func (s *EmbeddedServer) ClientURL() string { return "" }

// Shutdown is a no-op.
func (s *EmbeddedServer) Shutdown(context.Context) error { return nil }

// IsRunning returns false.
func (s *EmbeddedServer) IsRunning() bool { return false }

// EnsureStream returns ErrNATSDisabled.
func EnsureStream(context.Context, *Config) error { return ErrNATSDisabled }

// Publisher is unavailable without -tags nats.
type Publisher struct{}

// NewPublisher returns ErrNATSDisabled.
func NewPublisher(*Config, watermill.LoggerAdapter) (*Publisher, error) { return nil, ErrNATSDisabled }

// PublishNotification returns ErrNATSDisabled.
func (p *Publisher) PublishNotification(context.Context, string, string, interface{}) error {
	return ErrNATSDisabled
}

// PublishMember returns ErrNATSDisabled.
func (p *Publisher) PublishMember(context.Context, MemberEvent) error { return ErrNATSDisabled }

// Close is a no-op.
func (p *Publisher) Close() error { return nil }

// Subscriber is unavailable without -tags nats.
type Subscriber struct{}

// NewSubscriber returns ErrNATSDisabled.
func NewSubscriber(*Config, *Dispatcher, watermill.LoggerAdapter) (*Subscriber, error) {
	return nil, ErrNATSDisabled
}

// Run returns ErrNATSDisabled.
func (s *Subscriber) Run(context.Context) error { return ErrNATSDisabled }

// Close is a no-op.
func (s *Subscriber) Close() error { return nil }
