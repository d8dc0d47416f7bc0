// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package services

import (
	"context"
	"fmt"
	"time"
)

// NATSComponentsRunner is satisfied by *NATSComponents in cmd/server.
type NATSComponentsRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// NATSComponentsService supervises the NATS ingest: the optional embedded
// server, the notification subscriber and the membership subscriber.
type NATSComponentsService struct {
	components      NATSComponentsRunner
	shutdownTimeout time.Duration
	name            string
}

// NewNATSComponentsService wraps components with a 10s shutdown timeout.
func NewNATSComponentsService(components NATSComponentsRunner) *NATSComponentsService {
	return NewNATSComponentsServiceWithTimeout(components, 10*time.Second)
}

// NewNATSComponentsServiceWithTimeout wraps components. A non-positive
// timeout means 10s.
func NewNATSComponentsServiceWithTimeout(components NATSComponentsRunner, shutdownTimeout time.Duration) *NATSComponentsService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &NATSComponentsService{
		components:      components,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-ingest",
	}
}

// Serve starts the components and stops them when ctx ends. A start failure
// is returned so suture retries with backoff.
func (s *NATSComponentsService) Serve(ctx context.Context) error {
	if err := s.components.Start(ctx); err != nil {
		return fmt.Errorf("NATS ingest start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.components.Shutdown(shutdownCtx)

	return ctx.Err()
}

func (s *NATSComponentsService) String() string {
	return s.name
}
