// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package membership

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// Backend names.
const (
	BackendCasbin = "casbin"
	BackendHTTP   = "http"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// rolePrecedence orders roles when a user holds several in one trip.
var rolePrecedence = []string{RoleOwner, RoleEditor, RoleViewer}

// ErrNoAdapter is returned by Reload when the embedded policy is in use.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// CasbinConfig configures a CasbinStore.
type CasbinConfig struct {
	// PolicyPath is a policy CSV. Empty, or a missing file, uses the embedded policy.
	PolicyPath string

	// ReloadInterval re-reads PolicyPath on this period. Zero disables reload.
	ReloadInterval time.Duration

	CacheTTL time.Duration
}

// CasbinStore keeps trip roles as Casbin grouping rules: g, user, role, trip.
type CasbinStore struct {
	config   *CasbinConfig
	enforcer *casbin.SyncedEnforcer
	cache    *roleCache
}

// NewCasbinStore loads the embedded model and the configured or embedded policy.
func NewCasbinStore(cfg *CasbinConfig) (*CasbinStore, error) {
	if cfg == nil {
		cfg = &CasbinConfig{}
	}

	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	fromFile := cfg.PolicyPath != "" && fileExists(cfg.PolicyPath)
	if fromFile {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicyText(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if fromFile && cfg.ReloadInterval > 0 {
		enforcer.StartAutoLoadPolicy(cfg.ReloadInterval)
	}

	logging.Info().
		Str("policy", policySource(cfg.PolicyPath, fromFile)).
		Dur("reload_interval", cfg.ReloadInterval).
		Msg("Membership store ready")

	return &CasbinStore{
		config:   cfg,
		enforcer: enforcer,
		cache:    newRoleCache(cfg.CacheTTL, cfg.CacheTTL),
	}, nil
}

func policySource(path string, fromFile bool) string {
	if fromFile {
		return path
	}
	return "embedded"
}

// loadPolicyText adds p and g rules from CSV text. Blank lines and # comments
// are skipped.
func loadPolicyText(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		ptype, rule := parts[0], parts[1:]

		switch {
		case ptype == "p" && len(rule) == 4:
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2], rule[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case ptype == "g" && len(rule) == 3:
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Role implements Checker. A user holding several roles in a trip reports
// the strongest one.
func (s *CasbinStore) Role(_ context.Context, tripID, userID string) (string, error) {
	if role, ok := s.cache.get(tripID, userID); ok {
		metrics.RecordMembershipLookup(BackendCasbin, outcomeCacheHit)
		return role, nil
	}

	role := strongestRole(s.enforcer.GetRolesForUserInDomain(userID, tripID))
	s.cache.set(tripID, userID, role)

	outcome := outcomeMember
	if role == "" {
		outcome = outcomeNotMember
	}
	metrics.RecordMembershipLookup(BackendCasbin, outcome)
	return role, nil
}

func strongestRole(roles []string) string {
	for _, r := range rolePrecedence {
		if slices.Contains(roles, r) {
			return r
		}
	}
	if len(roles) == 0 {
		return ""
	}
	slices.Sort(roles)
	return roles[0]
}

// Allowed reports whether userID may perform act on obj within tripID.
func (s *CasbinStore) Allowed(tripID, userID, obj, act string) (bool, error) {
	ok, err := s.enforcer.Enforce(userID, tripID, obj, act)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return ok, nil
}

// Grant makes userID a member of tripID with role, replacing any existing role.
func (s *CasbinStore) Grant(tripID, userID, role string) error {
	if tripID == "" || userID == "" || role == "" {
		return errors.New("grant requires trip, user and role")
	}
	if _, err := s.enforcer.DeleteRolesForUserInDomain(userID, tripID); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	if _, err := s.enforcer.AddRoleForUserInDomain(userID, role, tripID); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	s.cache.invalidate(tripID, userID)
	return nil
}

// Revoke removes userID from tripID. It reports whether a role was removed.
func (s *CasbinStore) Revoke(tripID, userID string) (bool, error) {
	removed, err := s.enforcer.DeleteRolesForUserInDomain(userID, tripID)
	if err != nil {
		return false, fmt.Errorf("failed to remove roles: %w", err)
	}
	s.cache.invalidate(tripID, userID)
	return removed, nil
}

// RevokeTrip removes every member of tripID.
func (s *CasbinStore) RevokeTrip(tripID string) error {
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(2, tripID); err != nil {
		return fmt.Errorf("failed to remove trip %s: %w", tripID, err)
	}
	s.cache.invalidateTrip(tripID)
	return nil
}

// Members returns the users holding any role in tripID, sorted.
func (s *CasbinStore) Members(tripID string) []string {
	//nolint:errcheck // only fails on a nil model
	rules, _ := s.enforcer.GetFilteredGroupingPolicy(2, tripID)
	users := make([]string, 0, len(rules))
	for _, r := range rules {
		users = append(users, r[0])
	}
	slices.Sort(users)
	return slices.Compact(users)
}

// Reload re-reads the policy file and drops cached lookups.
func (s *CasbinStore) Reload() error {
	if s.config.PolicyPath == "" || !fileExists(s.config.PolicyPath) {
		return ErrNoAdapter
	}
	if err := s.enforcer.LoadPolicy(); err != nil {
		return err
	}
	s.cache.clear()
	return nil
}

// Close stops policy reload and the cache janitor.
func (s *CasbinStore) Close() {
	s.enforcer.StopAutoLoadPolicy()
	s.cache.stop()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
