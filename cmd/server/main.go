// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/waypoint/internal/api"
	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/membership"
	"github.com/tomtom215/waypoint/internal/presence"
	"github.com/tomtom215/waypoint/internal/supervisor"
	"github.com/tomtom215/waypoint/internal/supervisor/services"
	ws "github.com/tomtom215/waypoint/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("membership_backend", cfg.Membership.Backend).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Waypoint with supervisor tree")

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.Timeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	members, err := membership.New(&cfg.Membership)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize membership backend")
	}
	defer members.Close()

	registry := presence.NewRegistry()
	lifecycle := presence.NewLifecycle(registry, members)
	monitor := presence.NewMonitor(registry,
		presence.WithInterval(cfg.Presence.HeartbeatInterval),
		presence.WithStaleAfter(cfg.Presence.StaleAfter))
	hub := ws.NewHub(registry)

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authenticator := auth.NewJWTAuthenticator(jwtManager, cfg.Security.TokenQueryParam)

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Lifecycle:      lifecycle,
		Hub:            hub,
		Authenticator:  authenticator,
		AllowedOrigins: cfg.Security.CORSOrigins,
		Client: ws.ClientOptions{
			SendBuffer:     cfg.Presence.SendBuffer,
			MaxMessageSize: cfg.Presence.MaxMessageSize,
			WriteWait:      cfg.Presence.WriteWait,
			PongWait:       cfg.Presence.PongWait,
			PingPeriod:     cfg.Presence.HeartbeatInterval,
			InboundRate:    rate.Limit(cfg.Presence.InboundRate),
			InboundBurst:   cfg.Presence.InboundBurst,
		},
	})

	handler := api.NewHandler(registry, members, monitor, hub)
	router := api.NewRouter(handler,
		auth.NewMiddleware(authenticator),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
		wsHandler)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddMessagingService(monitor)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	logging.Info().
		Dur("heartbeat_interval", cfg.Presence.HeartbeatInterval).
		Dur("stale_after", cfg.Presence.StaleAfter).
		Msg("Heartbeat monitor and WebSocket hub added to supervisor tree")

	natsComponents, err := InitNATS(cfg, registry, members)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS ingest")
	}
	AddNATSToSupervisor(tree, natsComponents)

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Waypoint stopped gracefully")
}
