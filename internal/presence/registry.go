// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package presence tracks who is viewing which part of a trip and fans out
// live updates to everyone else in the same trip room.
//
// A Registry owns every room and the liveness table behind one mutex.
// Broadcasts enqueue on each Conn while the lock is held, so every
// recipient observes sends in the order they were issued.
//
//	reg := presence.NewRegistry()
//	lc := presence.NewLifecycle(reg, checker)
//	mon := presence.NewMonitor(reg)
//	mon.Start()
//	defer mon.Stop()
package presence

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

type member struct {
	conn   Conn
	record Record
	// joinOrder fixes roster order to first join; seq orders presence reports.
	joinOrder uint64
	seq       uint64
}

type room map[string]*member

// ordered returns the room's members in join order.
func (rm room) ordered() []*member {
	out := make([]*member, 0, len(rm))
	for _, m := range rm {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *member) int { return cmp.Compare(a.joinOrder, b.joinOrder) })
	return out
}

// RoomInfo summarizes one room for introspection.
type RoomInfo struct {
	TripID      string `json:"tripId"`
	Connections int    `json:"connections"`
	Users       int    `json:"users"`
}

// Registry maps trip IDs to their live connections and presence records.
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]room
	lastActive map[string]time.Time
	conns      int
	seq        uint64

	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, for tests that advance simulated time.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger replaces the component logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		rooms:      make(map[string]room),
		lastActive: make(map[string]time.Time),
		now:        time.Now,
		logger:     logging.WithComponent("presence"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Join inserts conn into tripID's room with rec, replacing any earlier
// record for the same connection. The room is created on first join.
func (r *Registry) Join(tripID string, conn Conn, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[tripID]
	if !ok {
		rm = make(room)
		r.rooms[tripID] = rm
		r.logger.Debug().Str("trip_id", tripID).Msg("room created")
	}

	r.seq++
	id := conn.ID()
	if existing, ok := rm[id]; ok {
		existing.conn = conn
		existing.record = rec.clone()
		existing.seq = r.seq
	} else {
		rm[id] = &member{conn: conn, record: rec.clone(), joinOrder: r.seq, seq: r.seq}
		r.conns++
	}
	r.lastActive[id] = r.now()
	r.publishStatsLocked()
}

// Leave removes connID from tripID's room and from the liveness table.
// An emptied room is deleted. Leave reports whether an entry was removed.
func (r *Registry) Leave(tripID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := r.removeLocked(tripID, connID)
	if removed {
		r.publishStatsLocked()
	}
	return removed
}

// LeaveAll clears every room and the liveness table.
func (r *Registry) LeaveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]room)
	r.lastActive = make(map[string]time.Time)
	r.conns = 0
	r.publishStatsLocked()
}

// Update merges dayID and patternID into connID's record in tripID, keeping
// UserID and Name. It returns false without effect when connID is not a
// member of the room.
func (r *Registry) Update(tripID, connID string, dayID, patternID *string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rooms[tripID][connID]
	if !ok {
		return false
	}
	r.seq++
	m.seq = r.seq
	m.record.DayID = cloneString(dayID)
	m.record.PatternID = cloneString(patternID)
	return true
}

// Touch marks connID as active now. Unknown IDs are ignored.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lastActive[connID]; ok {
		r.lastActive[connID] = r.now()
	}
}

// Snapshot returns one record per user in tripID, ordered by each user's
// first join. A user with several connections is represented by whichever
// connection reported presence most recently. An unknown trip yields an
// empty, non-nil slice.
func (r *Registry) Snapshot(tripID string) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(tripID)
}

func (r *Registry) snapshotLocked(tripID string) []Record {
	rm := r.rooms[tripID]
	out := make([]Record, 0, len(rm))
	if len(rm) == 0 {
		return out
	}

	index := make(map[string]int, len(rm))
	latest := make(map[string]uint64, len(rm))
	for _, m := range rm.ordered() {
		uid := m.record.UserID
		if i, seen := index[uid]; seen {
			if m.seq > latest[uid] {
				out[i] = m.record.clone()
				latest[uid] = m.seq
			}
			continue
		}
		index[uid] = len(out)
		latest[uid] = m.seq
		out = append(out, m.record.clone())
	}
	return out
}

// Has reports whether tripID currently has a room.
func (r *Registry) Has(tripID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[tripID]
	return ok
}

// RoomCount returns the number of non-empty rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// ConnectionCount returns the number of registered connections across rooms.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns
}

// Rooms summarizes every room, sorted by trip ID.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RoomInfo, 0, len(r.rooms))
	for tripID, rm := range r.rooms {
		users := make(map[string]struct{}, len(rm))
		for _, m := range rm {
			users[m.record.UserID] = struct{}{}
		}
		out = append(out, RoomInfo{TripID: tripID, Connections: len(rm), Users: len(users)})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.TripID, b.TripID) })
	return out
}

// removeLocked deletes one entry, its liveness entry and, if emptied, the room.
func (r *Registry) removeLocked(tripID, connID string) bool {
	rm, ok := r.rooms[tripID]
	if !ok {
		return false
	}
	if _, ok := rm[connID]; !ok {
		return false
	}
	delete(rm, connID)
	delete(r.lastActive, connID)
	r.conns--
	if len(rm) == 0 {
		delete(r.rooms, tripID)
		r.logger.Debug().Str("trip_id", tripID).Msg("room removed")
	}
	return true
}

// purgeLocked removes a batch of dead connections from tripID.
func (r *Registry) purgeLocked(tripID string, connIDs []string, reason string) {
	n := 0
	for _, id := range connIDs {
		if r.removeLocked(tripID, id) {
			n++
		}
	}
	if n == 0 {
		return
	}
	metrics.RecordEvictions(reason, n)
	r.publishStatsLocked()
	r.logger.Debug().
		Str("trip_id", tripID).
		Str("reason", reason).
		Int("purged", n).
		Msg("purged dead connections")
}

func (r *Registry) publishStatsLocked() {
	metrics.SetRoomStats(len(r.rooms), r.conns)
}
