// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/tomtom215/waypoint/internal/validation"
)

// Topics under the subject prefix.
const (
	TopicNotifications = "notifications"
	TopicMembers       = "members"
)

// Membership actions.
const (
	ActionGrant  = "grant"
	ActionRevoke = "revoke"
)

// MetadataTripID is the watermill metadata key carrying the trip ID.
const MetadataTripID = "trip_id"

// ErrMalformed marks a payload that can never be applied. Such messages are
// acked and dropped.
var ErrMalformed = errors.New("malformed ingest message")

// Subject returns "<prefix>.<tripID>.<topic>".
func Subject(prefix, tripID, topic string) string {
	return prefix + "." + tripID + "." + topic
}

// WildcardSubject matches topic for every trip.
func WildcardSubject(prefix, topic string) string {
	return prefix + ".*." + topic
}

// ValidSubjectToken reports whether s can be used as one NATS subject token.
func ValidSubjectToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".*> \t\r\n")
}

// Envelope is a notification bound for one trip room.
type Envelope struct {
	TripID        string          `json:"tripId" validate:"required,opaqueid,max=128"`
	ExcludeUserID string          `json:"excludeUserId,omitempty" validate:"omitempty,opaqueid,max=128"`
	Message       json.RawMessage `json:"message"`
}

// MemberEvent grants or revokes a trip role.
type MemberEvent struct {
	Action string `json:"action" validate:"required,oneof=grant revoke"`
	TripID string `json:"tripId" validate:"required,opaqueid,max=128"`
	UserID string `json:"userId" validate:"required,opaqueid,max=128"`
	Role   string `json:"role,omitempty" validate:"required_if=Action grant,omitempty,oneof=owner editor viewer"`
}

// DecodeEnvelope parses and checks a notification payload. Every failure
// wraps ErrMalformed.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if verr := validation.ValidateStruct(&env); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, verr)
	}
	if len(env.Message) == 0 {
		return nil, fmt.Errorf("%w: message is required", ErrMalformed)
	}

	msg := gjson.ParseBytes(env.Message)
	if !msg.IsObject() {
		return nil, fmt.Errorf("%w: message must be a JSON object", ErrMalformed)
	}
	typ := msg.Get("type")
	if typ.Type != gjson.String {
		return nil, fmt.Errorf("%w: message.type must be a string", ErrMalformed)
	}
	if err := validation.GetValidator().Var(typ.Str, "required,eventtype,max=64"); err != nil {
		return nil, fmt.Errorf("%w: message.type %q", ErrMalformed, typ.Str)
	}
	if trip := msg.Get("tripId"); trip.Exists() && trip.Str != env.TripID {
		return nil, fmt.Errorf("%w: message.tripId does not match envelope", ErrMalformed)
	}
	return &env, nil
}

// DecodeMemberEvent parses and checks a membership payload. Every failure
// wraps ErrMalformed.
func DecodeMemberEvent(data []byte) (*MemberEvent, error) {
	var ev MemberEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if verr := validation.ValidateStruct(&ev); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, verr)
	}
	return &ev, nil
}
