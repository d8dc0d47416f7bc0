// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import "github.com/goccy/go-json"

// Message types on the wire.
const (
	TypePresence       = "presence"
	TypePing           = "ping"
	TypePresenceUpdate = "presence:update"
)

// Record is one connection's advertised focus within a trip.
type Record struct {
	UserID    string  `json:"userId"`
	Name      string  `json:"name"`
	DayID     *string `json:"dayId"`
	PatternID *string `json:"patternId"`
}

func (r Record) clone() Record {
	r.DayID = cloneString(r.DayID)
	r.PatternID = cloneString(r.PatternID)
	return r
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Identity is a verified caller resolved before admission.
type Identity struct {
	UserID string
	Name   string
}

// PresenceMessage is the roster sent to one recipient, excluding that
// recipient's own user.
type PresenceMessage struct {
	Type  string   `json:"type"`
	Users []Record `json:"users"`
}

// PingMessage is the application-level liveness probe.
type PingMessage struct {
	Type string `json:"type"`
}

// presenceUpdate is the only message clients send.
type presenceUpdate struct {
	Type      string  `json:"type" validate:"required,eq=presence:update"`
	DayID     *string `json:"dayId" validate:"required,max=128"`
	PatternID *string `json:"patternId" validate:"omitempty,max=128"`
}

var pingFrame = mustMarshal(PingMessage{Type: TypePing})

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
