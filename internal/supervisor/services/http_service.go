// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/waypoint/internal/logging"
)

// HTTPServer interface matches the *http.Server lifecycle methods.
//
// It lets HTTPServerService drive an http.Server without depending on it
// directly, so tests can substitute a mock.
//
// Satisfied by *http.Server from net/http:
//   - ListenAndServe() error
//   - Shutdown(ctx context.Context) error
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService wraps the Waypoint HTTP server as a supervised service.
//
// The wrapper translates between http.Server's blocking ListenAndServe and
// suture's context-aware Serve:
//
//  1. Starts ListenAndServe in a goroutine
//  2. Waits for either context cancellation or a listener error
//  3. On shutdown, calls Shutdown bounded by shutdownTimeout
//
// Shutdown only drains plain HTTP requests (health, presence snapshots,
// notification ingest). Sockets on /ws/trips/{tripId} are hijacked and
// invisible to http.Server; WebSocketHubService closes them with 1001.
//
// Example usage:
//
//	server := &http.Server{Addr: ":8340", Handler: router.SetupChi()}
//	svc := services.NewHTTPServerService(server, cfg.Server.Timeout)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService creates an HTTP server service wrapper.
//
// shutdownTimeout bounds how long in-flight requests may take to finish
// during graceful shutdown. A non-positive value means 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            "http-server",
	}
}

// Serve implements suture.Service.
//
// This method:
//  1. Starts the HTTP server in a goroutine (blocks on ListenAndServe)
//  2. Waits for context cancellation or a listener error
//  3. On cancellation, calls server.Shutdown and logs the drain time
//
// A listener failure such as a port already in use is returned wrapped so
// suture restarts the service with backoff. http.ErrServerClosed is the
// expected result of Shutdown and is not reported. After a clean drain
// Serve returns ctx.Err().
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// ctx is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		started := time.Now()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		log := logging.WithComponent(h.name)
		log.Info().Dur("drain", time.Since(started)).Msg("HTTP server drained")
		return ctx.Err()
	}
}

// String implements fmt.Stringer. Suture uses it to name the service in
// its log events.
func (h *HTTPServerService) String() string {
	return h.name
}
