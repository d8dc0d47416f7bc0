// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

//go:build nats

package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/waypoint/internal/metrics"
)

type handlerFunc func(ctx context.Context, payload []byte) error

// route is one durable consumer feeding one dispatcher method.
type route struct {
	topic      string
	subject    string
	subscriber message.Subscriber
	handle     handlerFunc
}

// Subscriber consumes both ingest topics and applies them with a Dispatcher.
type Subscriber struct {
	routes []route
	logger watermill.LoggerAdapter
}

// NewSubscriber creates one durable queue consumer per topic, bound to the
// ingest stream.
func NewSubscriber(cfg *Config, d *Dispatcher, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	s := &Subscriber{logger: logger}
	for _, r := range []struct {
		topic  string
		handle handlerFunc
	}{
		{TopicNotifications, d.HandleNotification},
		{TopicMembers, d.HandleMember},
	} {
		sub, err := newWatermillSubscriber(cfg, r.topic, logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.routes = append(s.routes, route{
			topic:      r.topic,
			subject:    WildcardSubject(cfg.SubjectPrefix, r.topic),
			subscriber: sub,
			handle:     r.handle,
		})
	}
	return s, nil
}

func newWatermillSubscriber(cfg *Config, topic string, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.BindStream(cfg.StreamName),
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.AckWait(cfg.AckWaitTimeout),
		natsgo.DeliverNew(),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup + "-" + topic,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      connectOptions(cfg, logger, "subscriber-"+topic),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    false,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName + "-" + topic,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s subscriber: %w", topic, err)
	}
	return sub, nil
}

// Run consumes until ctx is canceled or a subscription ends.
func (s *Subscriber) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(s.routes))
	for _, r := range s.routes {
		messages, err := r.subscriber.Subscribe(ctx, r.subject)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe to %s: %w", r.subject, err)
		}
		wg.Add(1)
		go func(r route, messages <-chan *message.Message) {
			defer wg.Done()
			errCh <- s.consume(ctx, r, messages)
		}(r, messages)
	}

	err := <-errCh
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

func (s *Subscriber) consume(ctx context.Context, r route, messages <-chan *message.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription %s closed", r.subject)
			}
			s.process(ctx, r, msg)
		}
	}
}

// process acks applied and malformed messages and nacks transient failures.
func (s *Subscriber) process(ctx context.Context, r route, msg *message.Message) {
	err := r.handle(ctx, msg.Payload)
	switch {
	case err == nil:
		msg.Ack()
	case errors.Is(err, ErrMalformed):
		metrics.RecordIngestDropped(r.topic, dropReason(err))
		s.logger.Info("Dropped ingest message", watermill.LogFields{
			"topic":        r.topic,
			"message_uuid": msg.UUID,
			"trip_id":      msg.Metadata.Get(MetadataTripID),
			"reason":       err.Error(),
		})
		msg.Ack()
	default:
		s.logger.Error("Ingest message failed", err, watermill.LogFields{
			"topic":        r.topic,
			"message_uuid": msg.UUID,
		})
		msg.Nack()
	}
}

// Close closes every consumer and returns the first error.
func (s *Subscriber) Close() error {
	var first error
	for _, r := range s.routes {
		if err := r.subscriber.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
