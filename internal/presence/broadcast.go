// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/metrics"
)

// NotifyRoom serializes msg once and sends it to every connection in tripID
// whose user is not excludeUserID. Connections whose send fails are closed,
// purged, and the survivors receive a fresh roster. A missing room is a
// no-op. NotifyRoom returns the number of successful deliveries.
func (r *Registry) NotifyRoom(tripID, excludeUserID string, msg interface{}) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error().Err(err).Str("trip_id", tripID).Msg("failed to encode notification")
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[tripID]
	if !ok {
		return 0
	}

	var dead []string
	delivered := 0
	for _, m := range rm.ordered() {
		if m.record.UserID == excludeUserID {
			continue
		}
		if !r.sendLocked(m, data, "notification") {
			dead = append(dead, m.conn.ID())
			continue
		}
		delivered++
	}

	if len(dead) > 0 {
		r.purgeLocked(tripID, dead, metrics.EvictionSendFailed)
		r.broadcastPresenceLocked(tripID)
	}
	return delivered
}

// BroadcastPresence sends every connection in tripID the deduplicated
// roster minus its own user. A missing room is a no-op.
func (r *Registry) BroadcastPresence(tripID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastPresenceLocked(tripID)
}

// broadcastPresenceLocked repeats until a round has no send failures. Each
// failing round removes at least one connection, so it terminates.
func (r *Registry) broadcastPresenceLocked(tripID string) {
	for {
		rm, ok := r.rooms[tripID]
		if !ok {
			return
		}

		snapshot := r.snapshotLocked(tripID)
		frames := make(map[string][]byte)
		var dead []string

		for _, m := range rm.ordered() {
			uid := m.record.UserID
			frame, ok := frames[uid]
			if !ok {
				frame = r.encodeRosterFor(uid, snapshot)
				frames[uid] = frame
			}
			if !r.sendLocked(m, frame, TypePresence) {
				dead = append(dead, m.conn.ID())
			}
		}

		if len(dead) == 0 {
			return
		}
		r.purgeLocked(tripID, dead, metrics.EvictionSendFailed)
	}
}

func (r *Registry) encodeRosterFor(userID string, snapshot []Record) []byte {
	others := make([]Record, 0, len(snapshot))
	for _, rec := range snapshot {
		if rec.UserID != userID {
			others = append(others, rec)
		}
	}
	frame, err := json.Marshal(PresenceMessage{Type: TypePresence, Users: others})
	if err != nil {
		// Records are plain strings; encoding cannot fail in practice.
		r.logger.Error().Err(err).Msg("failed to encode presence")
		return nil
	}
	return frame
}

// sendLocked enqueues data on m. A failed send closes the handle so the
// transport does not linger outside any room.
func (r *Registry) sendLocked(m *member, data []byte, msgType string) bool {
	if err := m.conn.Send(data); err != nil {
		metrics.RecordSendFailure()
		_ = m.conn.Close(CloseTryAgainLater, "delivery failed")
		r.logger.Debug().
			Err(err).
			Str("conn_id", m.conn.ID()).
			Str("user_id", m.record.UserID).
			Msg("send failed")
		return false
	}
	metrics.RecordMessageSent(msgType)
	return true
}
