// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package notify

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/tomtom215/waypoint/internal/config"
)

// ErrNATSDisabled is returned by the stub build.
var ErrNATSDisabled = errors.New("NATS support not enabled (build with -tags nats)")

// Config holds bridge settings.
type Config struct {
	URL              string
	SubjectPrefix    string
	StreamName       string
	StreamMaxAge     time.Duration
	QueueGroup       string
	DurableName      string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration
	MaxDeliver       int
	MaxReconnects    int
	ReconnectWait    time.Duration

	// Embedded starts an in-process nats-server; URL is then ignored.
	Embedded     bool
	EmbeddedHost string
	EmbeddedPort int // -1 picks a random port
	StoreDir     string
}

// DefaultConfig returns single-node defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "nats://127.0.0.1:4222",
		SubjectPrefix:    "trips",
		StreamName:       "WAYPOINT",
		StreamMaxAge:     10 * time.Minute,
		QueueGroup:       "waypoint",
		DurableName:      "waypoint",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		MaxDeliver:       5,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		EmbeddedHost:     "127.0.0.1",
		EmbeddedPort:     4222,
		StoreDir:         "/data/nats",
	}
}

// ConfigFromNATS overlays the nats config section onto DefaultConfig.
func ConfigFromNATS(c *config.NATSConfig) Config {
	cfg := DefaultConfig()
	cfg.Embedded = c.EmbeddedServer
	if c.URL != "" {
		cfg.URL = c.URL
		if host, port, ok := listenAddr(c.URL); ok {
			cfg.EmbeddedHost, cfg.EmbeddedPort = host, port
		}
	}
	if c.StoreDir != "" {
		cfg.StoreDir = c.StoreDir
	}
	if c.SubjectPrefix != "" {
		cfg.SubjectPrefix = c.SubjectPrefix
	}
	if c.QueueGroup != "" {
		cfg.QueueGroup = c.QueueGroup
	}
	if c.DurableName != "" {
		cfg.DurableName = c.DurableName
	}
	if c.SubscribersCount > 0 {
		cfg.SubscribersCount = c.SubscribersCount
	}
	if c.AckWaitTimeout > 0 {
		cfg.AckWaitTimeout = c.AckWaitTimeout
	}
	if c.CloseTimeout > 0 {
		cfg.CloseTimeout = c.CloseTimeout
	}
	return cfg
}

// listenAddr extracts host and port from a nats:// URL so an embedded server
// listens where clients are told to connect.
func listenAddr(raw string) (string, int, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", 0, false
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}
	return host, port, true
}
