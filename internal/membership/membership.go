// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package membership answers whether a user belongs to a trip.
//
// Two backends exist. CasbinStore keeps trip roles in an in-process Casbin
// RBAC-with-domains enforcer, where the domain is the trip ID. HTTPStore asks
// a remote membership service and is guarded by a circuit breaker; it is
// normally wrapped in a CachedChecker.
package membership

import (
	"context"
	"fmt"

	"github.com/tomtom215/waypoint/internal/config"
)

// Trip roles. Any non-empty role admits a connection.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
)

// Lookup outcomes recorded in metrics.
const (
	outcomeMember    = "member"
	outcomeNotMember = "not_member"
	outcomeError     = "error"
	outcomeRejected  = "rejected"
	outcomeCacheHit  = "cache_hit"
)

// Checker resolves a user's role in a trip. An empty role with a nil error
// means the user is not a member.
type Checker interface {
	Role(ctx context.Context, tripID, userID string) (string, error)
}

// Store is a Checker that holds background resources.
type Store interface {
	Checker
	Close()
}

// New builds the backend selected by cfg.Backend.
func New(cfg *config.MembershipConfig) (Store, error) {
	switch cfg.Backend {
	case "", BackendCasbin:
		return NewCasbinStore(&CasbinConfig{
			PolicyPath:     cfg.PolicyPath,
			ReloadInterval: cfg.ReloadInterval,
			CacheTTL:       cfg.CacheTTL,
		})
	case BackendHTTP:
		store, err := NewHTTPStore(cfg)
		if err != nil {
			return nil, err
		}
		return NewCachedChecker(store, BackendHTTP, cfg.CacheTTL, cfg.NegativeTTL), nil
	default:
		return nil, fmt.Errorf("unknown membership backend %q", cfg.Backend)
	}
}
