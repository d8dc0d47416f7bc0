// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

// Heartbeat defaults.
const (
	DefaultHeartbeatInterval = 15 * time.Second
	DefaultStaleAfter        = 3 * DefaultHeartbeatInterval
)

// SweepResult counts what one heartbeat sweep did.
type SweepResult struct {
	Rooms  int
	Pinged int
	Stale  int
	Failed int
}

// Sweep pings every connection and evicts those idle for longer than
// staleAfter or whose ping fails. Stale connections are closed with
// CloseHeartbeatTimeout. Rooms that lost members get a fresh roster.
func (r *Registry) Sweep(staleAfter time.Duration) SweepResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	res := SweepResult{Rooms: len(r.rooms)}

	for tripID, rm := range r.rooms {
		var stale, failed []string
		for _, m := range rm.ordered() {
			id := m.conn.ID()
			if last, ok := r.lastActive[id]; ok && now.Sub(last) > staleAfter {
				_ = m.conn.Close(CloseHeartbeatTimeout, "heartbeat timeout")
				stale = append(stale, id)
				continue
			}
			if !r.sendLocked(m, pingFrame, TypePing) {
				failed = append(failed, id)
				continue
			}
			res.Pinged++
		}

		if len(stale) == 0 && len(failed) == 0 {
			continue
		}
		res.Stale += len(stale)
		res.Failed += len(failed)
		r.purgeLocked(tripID, stale, metrics.EvictionStale)
		r.purgeLocked(tripID, failed, metrics.EvictionPingFailed)
		r.broadcastPresenceLocked(tripID)
	}
	return res
}

// Monitor runs Registry.Sweep on a fixed period.
type Monitor struct {
	registry   *Registry
	interval   time.Duration
	staleAfter time.Duration
	logger     zerolog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	loops atomic.Int32
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithInterval sets the sweep period.
func WithInterval(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithStaleAfter sets the inactivity window before eviction.
func WithStaleAfter(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.staleAfter = d
		}
	}
}

// NewMonitor returns a stopped monitor for registry.
func NewMonitor(registry *Registry, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		registry:   registry,
		interval:   DefaultHeartbeatInterval,
		staleAfter: DefaultStaleAfter,
		logger:     logging.WithComponent("heartbeat"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the sweep loop. Calling Start while running replaces the
// existing loop, so exactly one loop is active afterwards.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done
	m.loops.Add(1)
	go m.run(stop, done)

	m.logger.Info().
		Dur("interval", m.interval).
		Dur("stale_after", m.staleAfter).
		Msg("Heartbeat monitor started")
}

// Stop halts the sweep loop and waits for it to exit. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopLocked() {
		m.logger.Info().Msg("Heartbeat monitor stopped")
	}
}

func (m *Monitor) stopLocked() bool {
	if m.stop == nil {
		return false
	}
	close(m.stop)
	<-m.done
	m.stop, m.done = nil, nil
	return true
}

// Running reports whether a sweep loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// ActiveLoops returns the number of live sweep goroutines.
func (m *Monitor) ActiveLoops() int {
	return int(m.loops.Load())
}

// Sweep runs one sweep immediately.
func (m *Monitor) Sweep() SweepResult {
	start := time.Now()
	res := m.registry.Sweep(m.staleAfter)
	metrics.RecordHeartbeatSweep(time.Since(start))

	if res.Stale > 0 || res.Failed > 0 {
		m.logger.Info().
			Int("rooms", res.Rooms).
			Int("stale", res.Stale).
			Int("failed", res.Failed).
			Msg("Heartbeat evicted connections")
	}
	return res
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	m.Start()
	<-ctx.Done()
	m.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (m *Monitor) String() string {
	return "heartbeat-monitor"
}

func (m *Monitor) run(stop, done chan struct{}) {
	defer close(done)
	defer m.loops.Add(-1)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
