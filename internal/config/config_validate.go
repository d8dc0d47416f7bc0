// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package config

import (
	"fmt"
	"net/url"
	"time"
)

const (
	minJWTSecretLength   = 32
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
	minHeartbeatInterval = 100 * time.Millisecond
	minMessageSize       = 256
)

// Validate checks that configuration is complete and internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validatePresence(); err != nil {
		return err
	}
	if err := c.validateMembership(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if len(c.Security.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin (use * to allow any)")
	}
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* is not allowed when ENVIRONMENT=production")
	}
	return c.validateRateLimits()
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

func (c *Config) validatePresence() error {
	p := c.Presence
	if p.HeartbeatInterval < minHeartbeatInterval {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be at least %v", minHeartbeatInterval)
	}
	// StaleAfter must span more than one sweep period.
	if p.StaleAfter <= p.HeartbeatInterval {
		return fmt.Errorf("PRESENCE_STALE_AFTER (%v) must exceed HEARTBEAT_INTERVAL (%v)", p.StaleAfter, p.HeartbeatInterval)
	}
	if p.SendBuffer < 1 {
		return fmt.Errorf("PRESENCE_SEND_BUFFER must be at least 1")
	}
	if p.MaxMessageSize < minMessageSize {
		return fmt.Errorf("PRESENCE_MAX_MESSAGE_SIZE must be at least %d bytes", minMessageSize)
	}
	if p.WriteWait <= 0 || p.PongWait <= 0 {
		return fmt.Errorf("PRESENCE_WRITE_WAIT and PRESENCE_PONG_WAIT must be positive")
	}
	if p.InboundRate <= 0 || p.InboundBurst < 1 {
		return fmt.Errorf("PRESENCE_INBOUND_RATE must be positive and PRESENCE_INBOUND_BURST at least 1")
	}
	return nil
}

func (c *Config) validateMembership() error {
	switch c.Membership.Backend {
	case "casbin":
		return nil
	case "http":
		if c.Membership.ServiceURL == "" {
			return fmt.Errorf("MEMBERSHIP_SERVICE_URL is required when MEMBERSHIP_BACKEND=http")
		}
		u, err := url.Parse(c.Membership.ServiceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("MEMBERSHIP_SERVICE_URL must be an absolute http(s) URL")
		}
		if c.Membership.RequestTimeout <= 0 {
			return fmt.Errorf("MEMBERSHIP_REQUEST_TIMEOUT must be positive")
		}
		if c.Membership.BreakerFailures == 0 {
			return fmt.Errorf("MEMBERSHIP_BREAKER_FAILURES must be at least 1")
		}
		return nil
	default:
		return fmt.Errorf("MEMBERSHIP_BACKEND must be one of: casbin, http")
	}
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.URL == "" && !c.NATS.EmbeddedServer {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true without an embedded server")
	}
	if c.NATS.SubjectPrefix == "" {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must not be empty")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
