// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package config loads Waypoint configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config File: optional YAML (CONFIG_PATH, ./config.yaml, /etc/waypoint/config.yaml)
//  3. Environment Variables: override any setting through envTransformFunc
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	monitor := presence.NewMonitor(registry,
//	    presence.WithInterval(cfg.Presence.HeartbeatInterval),
//	    presence.WithStaleAfter(cfg.Presence.StaleAfter))
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Presence   PresenceConfig   `koanf:"presence"`
	Membership MembershipConfig `koanf:"membership"`
	NATS       NATSConfig       `koanf:"nats"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds authentication, CORS and rate limiting settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// TokenQueryParam is the query parameter consulted for a token on
	// WebSocket upgrades. Empty disables query-string tokens.
	TokenQueryParam string `koanf:"token_query_param"`
}

// PresenceConfig tunes the room registry, heartbeat and per-socket transport.
type PresenceConfig struct {
	// HeartbeatInterval is how often the monitor sweeps every room.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// StaleAfter is the inactivity window after which a connection is evicted.
	StaleAfter time.Duration `koanf:"stale_after"`

	// SendBuffer is the per-connection outbound queue depth. A full queue
	// counts as a delivery failure.
	SendBuffer int `koanf:"send_buffer"`

	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64 `koanf:"max_message_size"`

	WriteWait time.Duration `koanf:"write_wait"`
	PongWait  time.Duration `koanf:"pong_wait"`

	// InboundRate and InboundBurst bound client frames per second.
	InboundRate  float64 `koanf:"inbound_rate"`
	InboundBurst int     `koanf:"inbound_burst"`
}

// MembershipConfig selects and tunes the trip membership backend.
type MembershipConfig struct {
	// Backend is "casbin" (in-process policy) or "http" (remote membership service).
	Backend string `koanf:"backend"`

	// PolicyPath is an optional casbin policy CSV. Empty uses the embedded policy.
	PolicyPath     string        `koanf:"policy_path"`
	ReloadInterval time.Duration `koanf:"reload_interval"`

	ServiceURL      string        `koanf:"service_url"`
	ServiceToken    string        `koanf:"service_token"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	NegativeTTL     time.Duration `koanf:"negative_ttl"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// NATSConfig controls the optional notification ingest bridge.
type NATSConfig struct {
	Enabled          bool          `koanf:"enabled"`
	URL              string        `koanf:"url"`
	EmbeddedServer   bool          `koanf:"embedded_server"`
	StoreDir         string        `koanf:"store_dir"`
	SubjectPrefix    string        `koanf:"subject_prefix"`
	QueueGroup       string        `koanf:"queue_group"`
	DurableName      string        `koanf:"durable_name"`
	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// LoggingConfig holds logging settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
