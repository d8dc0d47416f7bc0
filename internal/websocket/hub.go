// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/presence"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful path (SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Hub tracks every live socket on /ws/trips/{tripId} so shutdown can close
// them all.
//
// The hub owns no room state. Room membership, focus and fan-out live in
// presence.Registry; the hub only needs the set of sockets because
// http.Server.Shutdown cannot see hijacked connections. Lifecycle:
//
//  1. Handler upgrades a request and calls Register before admission
//  2. Client.readPump calls Unregister when the socket ends
//  3. RunWithContext closes everything with 1001 when the supervisor stops
//
// Example usage:
//
//	hub := websocket.NewHub(registry)
//	tree.AddMessagingService(services.NewWebSocketHubService(hub))
//
// Hub is safe for concurrent use.
type Hub struct {
	registry *presence.Registry

	mu       sync.RWMutex
	clients  map[*Client]bool
	draining bool
}

// NewHub creates a hub whose registry is emptied on shutdown.
func NewHub(registry *presence.Registry) *Hub {
	return &Hub{
		registry: registry,
		clients:  make(map[*Client]bool),
	}
}

// Register tracks c. It returns false once the hub is shutting down.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.clients[c] = true
	logging.Debug().Int("total_clients", len(h.clients)).Msg("websocket client connected")
	return true
}

// Unregister stops tracking c. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		logging.Debug().Int("total_clients", len(h.clients)).Msg("websocket client disconnected")
	}
}

// GetClientCount returns the number of tracked sockets.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RunWithContext blocks until ctx is done, then closes every client with
// 1001 (going away), empties the registry and returns ctx.Err(). A
// supervisor restart reopens the hub for registration.
func (h *Hub) RunWithContext(ctx context.Context) error {
	h.mu.Lock()
	h.draining = false
	h.mu.Unlock()

	<-ctx.Done()
	h.logGracefulShutdown(ctx)
	return ctx.Err()
}

// logGracefulShutdown closes all clients and logs the reason. ctx.Err() is not
// logged as an error since cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()
	if h.registry != nil {
		h.registry.LeaveAll()
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes clients in ID order and refuses new registrations.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.draining = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, c := range clients {
		_ = c.Close(websocket.CloseGoingAway, "server shutting down")
		delete(h.clients, c)
	}
	return len(clients)
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}
