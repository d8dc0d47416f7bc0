// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

// Kind is a trip resource that CRUD handlers announce changes to.
type Kind string

// Resource kinds.
const (
	KindDay      Kind = "day"
	KindPattern  Kind = "pattern"
	KindSchedule Kind = "schedule"
	KindBookmark Kind = "bookmark"
	KindExpense  Kind = "expense"
	KindPoll     Kind = "poll"
	KindGroup    Kind = "group"
)

// Kinds lists every resource kind.
var Kinds = []Kind{KindDay, KindPattern, KindSchedule, KindBookmark, KindExpense, KindPoll, KindGroup}

// Operations.
const (
	OpCreated       = "created"
	OpUpdated       = "updated"
	OpDeleted       = "deleted"
	OpReordered     = "reordered"
	OpBatchCreated  = "batch_created"
	OpBatchUpdated  = "batch_updated"
	OpBatchDeleted  = "batch_deleted"
	TypeTripChanged = "trip:updated"
)

// EventType returns "<kind>:<op>".
func EventType(kind Kind, op string) string {
	return string(kind) + ":" + op
}

// Scope locates a change within a trip. DayID and PatternID are optional.
type Scope struct {
	TripID    string
	DayID     *string
	PatternID *string
}

// Notification is a mutation announcement fanned out with NotifyRoom.
type Notification struct {
	Type      string        `json:"type"`
	TripID    string        `json:"tripId"`
	DayID     *string       `json:"dayId,omitempty"`
	PatternID *string       `json:"patternId,omitempty"`
	EntityID  string        `json:"entityId,omitempty"`
	EntityIDs []string      `json:"entityIds,omitempty"`
	Entity    interface{}   `json:"entity,omitempty"`
	Entities  []interface{} `json:"entities,omitempty"`
	Order     []string      `json:"order,omitempty"`
}

func newNotification(kind Kind, op string, scope Scope) Notification {
	return Notification{
		Type:      EventType(kind, op),
		TripID:    scope.TripID,
		DayID:     scope.DayID,
		PatternID: scope.PatternID,
	}
}

// EntityCreated announces a new entity.
func EntityCreated(kind Kind, scope Scope, id string, entity interface{}) Notification {
	n := newNotification(kind, OpCreated, scope)
	n.EntityID, n.Entity = id, entity
	return n
}

// EntityUpdated announces a changed entity with its resulting state.
func EntityUpdated(kind Kind, scope Scope, id string, entity interface{}) Notification {
	n := newNotification(kind, OpUpdated, scope)
	n.EntityID, n.Entity = id, entity
	return n
}

// EntityDeleted announces a removed entity.
func EntityDeleted(kind Kind, scope Scope, id string) Notification {
	n := newNotification(kind, OpDeleted, scope)
	n.EntityID = id
	return n
}

// EntityReordered announces a new ordering of entities within scope.
func EntityReordered(kind Kind, scope Scope, order []string) Notification {
	n := newNotification(kind, OpReordered, scope)
	n.Order = order
	return n
}

// EntitiesCreated announces several new entities at once.
func EntitiesCreated(kind Kind, scope Scope, ids []string, entities []interface{}) Notification {
	n := newNotification(kind, OpBatchCreated, scope)
	n.EntityIDs, n.Entities = ids, entities
	return n
}

// EntitiesUpdated announces several changed entities at once.
func EntitiesUpdated(kind Kind, scope Scope, ids []string, entities []interface{}) Notification {
	n := newNotification(kind, OpBatchUpdated, scope)
	n.EntityIDs, n.Entities = ids, entities
	return n
}

// EntitiesDeleted announces several removed entities at once.
func EntitiesDeleted(kind Kind, scope Scope, ids []string) Notification {
	n := newNotification(kind, OpBatchDeleted, scope)
	n.EntityIDs = ids
	return n
}

// TripMetadataChanged signals that trip-level fields changed. Clients refetch.
func TripMetadataChanged(tripID string, trip interface{}) Notification {
	return Notification{Type: TypeTripChanged, TripID: tripID, Entity: trip}
}
