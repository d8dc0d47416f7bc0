// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package presence

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/waypoint/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

var errDeadConn = errors.New("connection is dead")

// fakeConn records every send and close.
type fakeConn struct {
	id string

	mu        sync.Mutex
	sent      [][]byte
	failSends bool
	closed    bool
	code      int
	reason    string
	closes    int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSends || c.closed {
		return errDeadConn
	}
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if !c.closed {
		c.closed, c.code, c.reason = true, code, reason
	}
	return nil
}

func (c *fakeConn) fail() {
	c.mu.Lock()
	c.failSends = true
	c.mu.Unlock()
}

func (c *fakeConn) frames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func (c *fakeConn) sendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) closeCode() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.code, c.closed
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}

// lastPresence decodes the most recent presence frame sent to c.
func (c *fakeConn) lastPresence(t *testing.T) []Record {
	t.Helper()
	frames := c.frames()
	for i := len(frames) - 1; i >= 0; i-- {
		var msg PresenceMessage
		if err := json.Unmarshal(frames[i], &msg); err != nil {
			t.Fatalf("frame %d is not JSON: %v", i, err)
		}
		if msg.Type == TypePresence {
			return msg.Users
		}
	}
	t.Fatalf("conn %s received no presence frame", c.id)
	return nil
}

func (c *fakeConn) countType(t *testing.T, typ string) int {
	t.Helper()
	n := 0
	for _, f := range c.frames() {
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(f, &msg); err != nil {
			t.Fatalf("frame is not JSON: %v", err)
		}
		if msg.Type == typ {
			n++
		}
	}
	return n
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// staticMembers maps tripID -> userID -> role.
type staticMembers struct {
	roles map[string]map[string]string
	err   error
}

func (s *staticMembers) Role(_ context.Context, tripID, userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.roles[tripID][userID], nil
}

func rec(userID, name string) Record {
	return Record{UserID: userID, Name: name}
}

func strPtr(s string) *string { return &s }

func userIDs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.UserID
	}
	return out
}
