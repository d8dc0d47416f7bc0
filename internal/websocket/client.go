// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
	"github.com/tomtom215/waypoint/internal/presence"
)

// Client errors.
var (
	ErrClientClosed   = errors.New("websocket client closed")
	ErrSendBufferFull = errors.New("websocket send buffer full")
)

// ClientOptions tunes a Client's pumps.
type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteWait      time.Duration
	PongWait       time.Duration
	// PingPeriod is how often a control ping is written. Pongs count as activity.
	PingPeriod   time.Duration
	InboundRate  rate.Limit
	InboundBurst int
}

// DefaultClientOptions matches the config defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		SendBuffer:     256,
		MaxMessageSize: 4096,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     presence.DefaultHeartbeatInterval,
		InboundRate:    10,
		InboundBurst:   20,
	}
}

func (o ClientOptions) normalized() ClientOptions {
	d := DefaultClientOptions()
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.WriteWait <= 0 {
		o.WriteWait = d.WriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = d.PongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.InboundRate <= 0 {
		o.InboundRate = d.InboundRate
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = d.InboundBurst
	}
	return o
}

// Client is one socket in one trip room. It implements presence.Conn: Send
// queues without blocking and Close only signals the write pump.
type Client struct {
	id     string
	tripID string
	hub    *Hub
	conn   *websocket.Conn
	opts   ClientOptions
	logger zerolog.Logger

	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce   sync.Once
	closeCode   int
	closeReason string
}

// NewClient wraps conn for tripID.
func NewClient(hub *Hub, conn *websocket.Conn, tripID string, opts ClientOptions) *Client {
	opts = opts.normalized()
	id := ulid.Make().String()
	return &Client{
		id:      id,
		tripID:  tripID,
		hub:     hub,
		conn:    conn,
		opts:    opts,
		logger:  logging.WithComponent("websocket").With().Str("conn_id", id).Str("trip_id", tripID).Logger(),
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(opts.InboundRate, opts.InboundBurst),
	}
}

// ID returns the client's ULID. IDs sort by creation time.
func (c *Client) ID() string {
	return c.id
}

// TripID returns the room this client belongs to.
func (c *Client) TripID() string {
	return c.tripID
}

// Send queues data for the write pump.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close asks the write pump to send a close frame with code and reason and
// then drop the socket. Only the first call has effect.
func (c *Client) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
	return nil
}

// Done is closed once Close has been called.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump feeds inbound frames to the lifecycle until the socket fails.
func (c *Client) readPump(lc *presence.Lifecycle) {
	defer func() {
		lc.Close(c.tripID, c)
		c.hub.Unregister(c)
		_ = c.Close(websocket.CloseNormalClosure, "")
	}()

	reg := lc.Registry()
	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		reg.Touch(c.id)
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		reg.Touch(c.id)

		if msgType != websocket.TextMessage {
			metrics.RecordInboundDropped(metrics.DropBinary)
			continue
		}
		if !c.limiter.Allow() {
			metrics.RecordInboundDropped(metrics.DropRateLimited)
			continue
		}
		lc.Message(c.tripID, c, data)
	}
}

// writePump owns every write to the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			c.flush()
			c.writeClose()
			return
		}
	}
}

// flush writes frames queued before Close.
func (c *Client) flush() {
	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(msgType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait)); err != nil {
		c.logger.Debug().Err(err).Msg("failed to set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(msgType, data); err != nil {
		c.logger.Debug().Err(err).Msg("websocket write failed")
		return false
	}
	return true
}

func (c *Client) writeClose() {
	if c.closeCode == websocket.CloseAbnormalClosure {
		return
	}
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteWait)); err != nil {
		c.logger.Debug().Err(err).Int("code", c.closeCode).Msg("failed to write close frame")
	}
}
