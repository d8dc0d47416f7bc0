// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package membership

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/waypoint/internal/metrics"
)

// roleCache caches role lookups keyed by trip and user.
type roleCache struct {
	ttl      time.Duration
	negTTL   time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	items    map[string]cacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	role      string
	expiresAt time.Time
}

func newRoleCache(ttl, negTTL time.Duration) *roleCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if negTTL <= 0 {
		negTTL = ttl
	}
	c := &roleCache{
		ttl:      ttl,
		negTTL:   negTTL,
		now:      time.Now,
		items:    make(map[string]cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func cacheKey(tripID, userID string) string {
	return tripID + "\x00" + userID
}

func (c *roleCache) get(tripID, userID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[cacheKey(tripID, userID)]
	if !ok || c.now().After(item.expiresAt) {
		return "", false
	}
	return item.role, true
}

func (c *roleCache) set(tripID, userID, role string) {
	ttl := c.ttl
	if role == "" {
		ttl = c.negTTL
	}
	c.mu.Lock()
	c.items[cacheKey(tripID, userID)] = cacheItem{role: role, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

func (c *roleCache) invalidate(tripID, userID string) {
	c.mu.Lock()
	delete(c.items, cacheKey(tripID, userID))
	c.mu.Unlock()
}

// invalidateTrip drops every cached lookup for tripID.
func (c *roleCache) invalidateTrip(tripID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := tripID + "\x00"
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

func (c *roleCache) clear() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

func (c *roleCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *roleCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop is idempotent.
func (c *roleCache) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}

// CachedChecker caches another Checker's answers. Members are kept for the
// positive TTL and non-members for the negative TTL. Errors are not cached.
type CachedChecker struct {
	next    Checker
	backend string
	cache   *roleCache
}

// NewCachedChecker wraps next. backend labels the lookup metrics.
func NewCachedChecker(next Checker, backend string, ttl, negativeTTL time.Duration) *CachedChecker {
	return &CachedChecker{
		next:    next,
		backend: backend,
		cache:   newRoleCache(ttl, negativeTTL),
	}
}

// Role implements Checker.
func (c *CachedChecker) Role(ctx context.Context, tripID, userID string) (string, error) {
	if role, ok := c.cache.get(tripID, userID); ok {
		metrics.RecordMembershipLookup(c.backend, outcomeCacheHit)
		return role, nil
	}
	role, err := c.next.Role(ctx, tripID, userID)
	if err != nil {
		return "", err
	}
	c.cache.set(tripID, userID, role)
	return role, nil
}

// Invalidate forgets the cached answer for one user in a trip.
func (c *CachedChecker) Invalidate(tripID, userID string) {
	c.cache.invalidate(tripID, userID)
}

// Close stops the cache janitor and closes the wrapped checker if it is a Store.
func (c *CachedChecker) Close() {
	c.cache.stop()
	if s, ok := c.next.(Store); ok {
		s.Close()
	}
}
