// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"

	"github.com/tomtom215/waypoint/internal/logging"
)

// ContextHub interface matches the *websocket.Hub lifecycle methods.
//
// It lets WebSocketHubService supervise the hub without this package
// importing internal/websocket's handler and client types, and lets tests
// substitute a mock.
//
// Satisfied by *websocket.Hub from internal/websocket/hub.go:
//   - RunWithContext(ctx context.Context) error
//   - GetClientCount() int
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// WebSocketHubService wraps the socket hub as a supervised service.
//
// The hub's RunWithContext already follows the suture.Service pattern, so
// this wrapper delegates to it and provides a name for logging. On
// shutdown the hub:
//
//  1. Refuses new registrations (late upgrades are closed with 1013)
//  2. Closes every live socket with 1001 (going away)
//  3. Empties the presence registry so no room outlives its sockets
//
// Example usage:
//
//	hub := websocket.NewHub(registry)
//	svc := services.NewWebSocketHubService(hub)
//	tree.AddMessagingService(svc)
type WebSocketHubService struct {
	hub  ContextHub
	name string
}

// NewWebSocketHubService creates a hub service wrapper.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
//
// It delegates to hub.RunWithContext, which blocks until ctx ends and then
// drains as described on WebSocketHubService. ctx.Err() is returned on
// normal shutdown. A hub that returns while ctx is still live is reported
// as a failure, with the number of sockets it left tracked, so the
// supervisor restarts it and reopens registration.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if ctx.Err() != nil {
		return err
	}
	if err == nil {
		err = errUnexpectedHubExit
	}
	log := logging.WithComponent(w.name)
	log.Error().Err(err).Int("clients", w.hub.GetClientCount()).Msg("WebSocket hub stopped unexpectedly")
	return err
}

var errUnexpectedHubExit = errors.New("websocket hub exited while context was live")

// Clients returns the hub's live client count.
func (w *WebSocketHubService) Clients() int {
	return w.hub.GetClientCount()
}

// String implements fmt.Stringer for suture's log events.
func (w *WebSocketHubService) String() string {
	return w.name
}
