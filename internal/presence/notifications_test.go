// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestNotificationShapes(t *testing.T) {
	day := strPtr("d1")
	tests := []struct {
		name string
		n    Notification
		want string
	}{
		{
			name: "created",
			n:    EntityCreated(KindBookmark, Scope{TripID: "T", DayID: day}, "b1", map[string]string{"url": "x"}),
			want: `{"type":"bookmark:created","tripId":"T","dayId":"d1","entityId":"b1","entity":{"url":"x"}}`,
		},
		{
			name: "deleted",
			n:    EntityDeleted(KindSchedule, Scope{TripID: "T", DayID: day, PatternID: strPtr("p1")}, "s1"),
			want: `{"type":"schedule:deleted","tripId":"T","dayId":"d1","patternId":"p1","entityId":"s1"}`,
		},
		{
			name: "reordered",
			n:    EntityReordered(KindDay, Scope{TripID: "T"}, []string{"d2", "d1"}),
			want: `{"type":"day:reordered","tripId":"T","order":["d2","d1"]}`,
		},
		{
			name: "batch deleted",
			n:    EntitiesDeleted(KindGroup, Scope{TripID: "T"}, []string{"g1", "g2"}),
			want: `{"type":"group:batch_deleted","tripId":"T","entityIds":["g1","g2"]}`,
		},
		{
			name: "batch updated",
			n:    EntitiesUpdated(KindPattern, Scope{TripID: "T"}, []string{"p1"}, []interface{}{1}),
			want: `{"type":"pattern:batch_updated","tripId":"T","entityIds":["p1"],"entities":[1]}`,
		},
		{
			name: "trip metadata",
			n:    TripMetadataChanged("T", nil),
			want: `{"type":"trip:updated","tripId":"T"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.n)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got  %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestEventTypeCoversKinds(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range Kinds {
		for _, op := range []string{OpCreated, OpUpdated, OpDeleted, OpReordered, OpBatchCreated, OpBatchUpdated, OpBatchDeleted} {
			typ := EventType(k, op)
			if seen[typ] {
				t.Fatalf("duplicate event type %s", typ)
			}
			seen[typ] = true
		}
	}
	if EventType(KindExpense, OpUpdated) != "expense:updated" {
		t.Errorf("EventType() = %s", EventType(KindExpense, OpUpdated))
	}
}
