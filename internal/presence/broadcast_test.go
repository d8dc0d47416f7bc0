// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"fmt"
	"math/rand"
	"slices"
	"testing"

	"github.com/goccy/go-json"
)

func TestNotifyRoom_ExcludesOriginatingUser(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))

	msg := EntityCreated(KindDay, Scope{TripID: "T"}, "day-1", map[string]string{"title": "Arrival"})
	delivered := reg.NotifyRoom("T", "u1", msg)

	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if c1.sendCount() != 0 {
		t.Errorf("c1 received %d frames, want 0", c1.sendCount())
	}
	frames := c2.frames()
	if len(frames) != 1 {
		t.Fatalf("c2 received %d frames, want 1", len(frames))
	}
	want, _ := json.Marshal(msg)
	if string(frames[0]) != string(want) {
		t.Errorf("c2 frame = %s, want %s", frames[0], want)
	}
}

func TestNotifyRoom_ExcludesAllConnectionsOfUser(t *testing.T) {
	reg := NewRegistry()
	tab1, tab2, other := newFakeConn("tab1"), newFakeConn("tab2"), newFakeConn("other")
	reg.Join("T", tab1, rec("u1", "Uma"))
	reg.Join("T", tab2, rec("u1", "Uma"))
	reg.Join("T", other, rec("u2", "Vic"))

	reg.NotifyRoom("T", "u1", TripMetadataChanged("T", nil))
	if tab1.sendCount()+tab2.sendCount() != 0 {
		t.Error("originating user's tabs must not receive the notification")
	}
	if other.sendCount() != 1 {
		t.Errorf("other received %d frames, want 1", other.sendCount())
	}
}

func TestNotifyRoom_EmptyExcludeReachesEveryone(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))

	if n := reg.NotifyRoom("T", "", TripMetadataChanged("T", nil)); n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
}

func TestBroadcastPresence_Personalized(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, Record{UserID: "u1", Name: "Uma", DayID: strPtr("d1")})
	reg.Join("T", c2, rec("u2", "Vic"))

	reg.BroadcastPresence("T")

	got1 := c1.lastPresence(t)
	if len(got1) != 1 || got1[0].UserID != "u2" {
		t.Errorf("c1 roster = %v, want [u2]", userIDs(got1))
	}
	got2 := c2.lastPresence(t)
	if len(got2) != 1 || got2[0].UserID != "u1" {
		t.Fatalf("c2 roster = %v, want [u1]", userIDs(got2))
	}
	if got2[0].DayID == nil || *got2[0].DayID != "d1" {
		t.Errorf("c2 sees u1 dayId = %v, want d1", got2[0].DayID)
	}
}

func TestBroadcastPresence_WireShape(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))
	reg.BroadcastPresence("T")

	frames := c1.frames()
	want := `{"type":"presence","users":[{"userId":"u2","name":"Vic","dayId":null,"patternId":null}]}`
	if string(frames[len(frames)-1]) != want {
		t.Errorf("frame = %s\nwant    %s", frames[len(frames)-1], want)
	}
}

func TestBroadcastPresence_AloneGetsEmptyList(t *testing.T) {
	reg := NewRegistry()
	c1 := newFakeConn("c1")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.BroadcastPresence("T")

	if string(c1.frames()[0]) != `{"type":"presence","users":[]}` {
		t.Errorf("frame = %s", c1.frames()[0])
	}
}

func TestBroadcast_MissingRoomIsNoop(t *testing.T) {
	reg := NewRegistry()
	if n := reg.NotifyRoom("ghost", "u1", TripMetadataChanged("ghost", nil)); n != 0 {
		t.Errorf("delivered = %d, want 0", n)
	}
	reg.BroadcastPresence("ghost")
	if reg.Has("ghost") || reg.RoomCount() != 0 {
		t.Error("broadcast must not create rooms")
	}
}

func TestNotifyRoom_SendFailurePurgesAndRebroadcasts(t *testing.T) {
	reg := NewRegistry()
	c1, c2, c3 := newFakeConn("c1"), newFakeConn("c2"), newFakeConn("c3")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))
	reg.Join("T", c3, rec("u3", "Wes"))
	c2.fail()

	delivered := reg.NotifyRoom("T", "u1", EntityDeleted(KindPoll, Scope{TripID: "T"}, "poll-1"))
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
	if got := userIDs(reg.Snapshot("T")); !slices.Equal(got, []string{"u1", "u3"}) {
		t.Errorf("snapshot = %v, want [u1 u3]", got)
	}
	if code, closed := c2.closeCode(); !closed || code != CloseTryAgainLater {
		t.Errorf("c2 close = %d/%v, want %d", code, closed, CloseTryAgainLater)
	}
	// Survivors, including the excluded originator, get a corrected roster.
	if got := userIDs(c1.lastPresence(t)); !slices.Equal(got, []string{"u3"}) {
		t.Errorf("c1 roster = %v, want [u3]", got)
	}
	if got := userIDs(c3.lastPresence(t)); !slices.Equal(got, []string{"u1"}) {
		t.Errorf("c3 roster = %v, want [u1]", got)
	}
}

func TestBroadcastPresence_CascadingFailures(t *testing.T) {
	reg := NewRegistry()
	conns := make([]*fakeConn, 4)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprintf("c%d", i))
		reg.Join("T", conns[i], rec(fmt.Sprintf("u%d", i), "n"))
	}
	conns[1].fail()
	conns[3].fail()

	reg.BroadcastPresence("T")

	if got := userIDs(reg.Snapshot("T")); !slices.Equal(got, []string{"u0", "u2"}) {
		t.Fatalf("snapshot = %v, want [u0 u2]", got)
	}
	if got := userIDs(conns[0].lastPresence(t)); !slices.Equal(got, []string{"u2"}) {
		t.Errorf("c0 final roster = %v, want [u2]", got)
	}
}

func TestBroadcastPresence_AllFailRemovesRoom(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))
	c1.fail()
	c2.fail()

	reg.BroadcastPresence("T")
	if reg.Has("T") {
		t.Error("room should be removed after every member failed")
	}
}

func TestBroadcast_PerRecipientOrder(t *testing.T) {
	reg := NewRegistry()
	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	reg.Join("T", c1, rec("u1", "Uma"))
	reg.Join("T", c2, rec("u2", "Vic"))

	for i := 0; i < 20; i++ {
		reg.NotifyRoom("T", "u1", EntityUpdated(KindExpense, Scope{TripID: "T"}, fmt.Sprintf("e%02d", i), nil))
	}
	frames := c2.frames()
	for i, f := range frames {
		var n Notification
		if err := json.Unmarshal(f, &n); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if want := fmt.Sprintf("e%02d", i); n.EntityID != want {
			t.Fatalf("frame %d entityId = %s, want %s", i, n.EntityID, want)
		}
	}
}

// Property: exclusion and self-exclusion hold for random rooms.
func TestBroadcast_ExclusionProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		reg := NewRegistry()
		owner := map[*fakeConn]string{}
		for i := 0; i < 2+rng.Intn(10); i++ {
			c := newFakeConn(fmt.Sprintf("c%d", i))
			u := fmt.Sprintf("u%d", rng.Intn(4))
			reg.Join("T", c, rec(u, u))
			owner[c] = u
		}

		excluded := fmt.Sprintf("u%d", rng.Intn(4))
		reg.NotifyRoom("T", excluded, TripMetadataChanged("T", nil))
		for c, u := range owner {
			got := c.countType(t, TypeTripChanged)
			if u == excluded && got != 0 {
				t.Fatalf("trial %d: excluded user %s received notification on %s", trial, u, c.id)
			}
			if u != excluded && got != 1 {
				t.Fatalf("trial %d: %s received %d notifications, want 1", trial, c.id, got)
			}
		}

		reg.BroadcastPresence("T")
		for c, u := range owner {
			for _, r := range c.lastPresence(t) {
				if r.UserID == u {
					t.Fatalf("trial %d: %s saw its own user %s", trial, c.id, u)
				}
			}
		}
	}
}
