// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
)

// Publisher lets CRUD services hand notifications to the presence service.
type Publisher struct {
	publisher message.Publisher
	prefix    string
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher connects a JetStream publisher. The stream must exist.
func NewPublisher(cfg *Config, logger watermill.LoggerAdapter) (*Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connectOptions(cfg, logger, "publisher"),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return &Publisher{publisher: pub, prefix: cfg.SubjectPrefix}, nil
}

// PublishNotification sends msg to tripID's room, skipping excludeUserID.
func (p *Publisher) PublishNotification(ctx context.Context, tripID, excludeUserID string, msg interface{}) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	payload, err := json.Marshal(Envelope{TripID: tripID, ExcludeUserID: excludeUserID, Message: raw})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.publish(ctx, tripID, TopicNotifications, payload)
}

// PublishMember sends a membership change.
func (p *Publisher) PublishMember(ctx context.Context, ev MemberEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal member event: %w", err)
	}
	return p.publish(ctx, ev.TripID, TopicMembers, payload)
}

func (p *Publisher) publish(ctx context.Context, tripID, topic string, payload []byte) error {
	if !ValidSubjectToken(tripID) {
		return fmt.Errorf("trip ID %q cannot be used in a subject", tripID)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(MetadataTripID, tripID)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	return p.publisher.Publish(Subject(p.prefix, tripID, topic), msg)
}

// Close is idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}

func connectOptions(cfg *Config, logger watermill.LoggerAdapter, role string) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("waypoint-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"role": role, "url": nc.ConnectedUrl()})
		}),
	}
}
