// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/waypoint/config.yaml",
	"/etc/waypoint/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8340,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			TokenQueryParam:   "token",
		},
		Presence: PresenceConfig{
			HeartbeatInterval: 15 * time.Second,
			StaleAfter:        45 * time.Second,
			SendBuffer:        256,
			MaxMessageSize:    4096,
			WriteWait:         10 * time.Second,
			PongWait:          60 * time.Second,
			InboundRate:       10,
			InboundBurst:      20,
		},
		Membership: MembershipConfig{
			Backend:         "casbin",
			PolicyPath:      "",
			ReloadInterval:  30 * time.Second,
			RequestTimeout:  5 * time.Second,
			CacheTTL:        30 * time.Second,
			NegativeTTL:     5 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			SubjectPrefix:    "trips",
			QueueGroup:       "waypoint",
			DurableName:      "waypoint-presence",
			SubscribersCount: 1,
			AckWaitTimeout:   30 * time.Second,
			CloseTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf layers struct defaults, an optional YAML file and environment
// variables, then validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as a single string.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"jwt_secret":          "security.jwt_secret",
	"session_timeout":     "security.session_timeout",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",
	"token_query_param":   "security.token_query_param",

	"heartbeat_interval":        "presence.heartbeat_interval",
	"presence_stale_after":      "presence.stale_after",
	"presence_send_buffer":      "presence.send_buffer",
	"presence_max_message_size": "presence.max_message_size",
	"presence_write_wait":       "presence.write_wait",
	"presence_pong_wait":        "presence.pong_wait",
	"presence_inbound_rate":     "presence.inbound_rate",
	"presence_inbound_burst":    "presence.inbound_burst",

	"membership_backend":          "membership.backend",
	"membership_policy_path":      "membership.policy_path",
	"membership_reload_interval":  "membership.reload_interval",
	"membership_service_url":      "membership.service_url",
	"membership_service_token":    "membership.service_token",
	"membership_request_timeout":  "membership.request_timeout",
	"membership_cache_ttl":        "membership.cache_ttl",
	"membership_negative_ttl":     "membership.negative_ttl",
	"membership_breaker_failures": "membership.breaker_failures",
	"membership_breaker_timeout":  "membership.breaker_timeout",

	"nats_enabled":          "nats.enabled",
	"nats_url":              "nats.url",
	"nats_embedded":         "nats.embedded_server",
	"nats_store_dir":        "nats.store_dir",
	"nats_subject_prefix":   "nats.subject_prefix",
	"nats_queue_group":      "nats.queue_group",
	"nats_durable_name":     "nats.durable_name",
	"nats_subscribers":      "nats.subscribers_count",
	"nats_ack_wait_timeout": "nats.ack_wait_timeout",
	"nats_close_timeout":    "nats.close_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables return "" and are ignored.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
