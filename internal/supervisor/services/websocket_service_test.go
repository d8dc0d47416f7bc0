// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/presence"
	"github.com/tomtom215/waypoint/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type mockContextHub struct {
	runErr  error
	exitNow bool
	runs    atomic.Int32
}

func (m *mockContextHub) RunWithContext(ctx context.Context) error {
	m.runs.Add(1)
	if m.runErr != nil || m.exitNow {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockContextHub) GetClientCount() int { return 3 }

// stubConn is a presence.Conn that accepts everything.
type stubConn struct{ id string }

func (c stubConn) ID() string              { return c.id }
func (c stubConn) Send([]byte) error       { return nil }
func (c stubConn) Close(int, string) error { return nil }

var _ suture.Service = (*WebSocketHubService)(nil)

func TestWebSocketHubService_Delegates(t *testing.T) {
	hub := &mockContextHub{}
	svc := NewWebSocketHubService(hub)
	if svc.String() != "websocket-hub" || svc.Clients() != 3 {
		t.Errorf("String() = %q, Clients() = %d", svc.String(), svc.Clients())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want DeadlineExceeded", err)
	}

	boom := errors.New("hub startup error")
	if err := NewWebSocketHubService(&mockContextHub{runErr: boom}).Serve(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Serve() = %v, want %v", err, boom)
	}

	if err := NewWebSocketHubService(&mockContextHub{exitNow: true}).Serve(context.Background()); !errors.Is(err, errUnexpectedHubExit) {
		t.Errorf("Serve() = %v, want %v", err, errUnexpectedHubExit)
	}
}

func TestWebSocketHubService_ShutdownEmptiesRegistry(t *testing.T) {
	registry := presence.NewRegistry()
	registry.Join("T", stubConn{id: "c1"}, presence.Record{UserID: "u1", Name: "Uma"})
	registry.Join("U", stubConn{id: "c2"}, presence.Record{UserID: "u2", Name: "Vic"})

	sup := suture.New("test-sup", suture.Spec{Timeout: 2 * time.Second})
	sup.Add(NewWebSocketHubService(websocket.NewHub(registry)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-errCh

	if registry.RoomCount() != 0 || registry.ConnectionCount() != 0 {
		t.Errorf("registry after shutdown: %d rooms, %d connections", registry.RoomCount(), registry.ConnectionCount())
	}
}

func TestHeartbeatMonitor_UnderSupervisor(t *testing.T) {
	monitor := presence.NewMonitor(presence.NewRegistry(), presence.WithInterval(10*time.Millisecond))

	sup := suture.New("test-sup", suture.Spec{Timeout: time.Second})
	sup.Add(monitor)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for !monitor.Running() {
		if time.Now().After(deadline) {
			t.Fatal("monitor did not start under the supervisor")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh

	if monitor.Running() {
		t.Error("monitor still running after supervisor stopped")
	}
}
