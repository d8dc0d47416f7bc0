// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Package metrics registers Waypoint's Prometheus collectors.
//
// Collectors are package globals registered through promauto, so callers use
// the Record* helpers (or the collectors directly) without wiring a registry.
// The /metrics endpoint serves them via promhttp.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission outcomes.
const (
	AdmissionAccepted        = "accepted"
	AdmissionUnauthenticated = "unauthenticated"
	AdmissionForbidden       = "forbidden"
	AdmissionError           = "error"
)

// Eviction reasons.
const (
	EvictionStale      = "stale"
	EvictionSendFailed = "send_failed"
	EvictionPingFailed = "ping_failed"
)

// Inbound drop reasons.
const (
	DropInvalidJSON  = "invalid_json"
	DropUnknownType  = "unknown_type"
	DropInvalidShape = "invalid_shape"
	DropRateLimited  = "rate_limited"
	DropBinary       = "binary"
	DropNotMember    = "not_member"
)

var (
	// Presence Metrics
	PresenceRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_rooms",
			Help: "Current number of trip rooms with at least one connection",
		},
	)

	PresenceConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_connections",
			Help: "Current number of connections registered in trip rooms",
		},
	)

	PresenceMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_messages_sent_total",
			Help: "Total number of messages enqueued to connections",
		},
		[]string{"type"}, // "presence", "ping", "notification"
	)

	PresenceSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_send_failures_total",
			Help: "Total number of failed enqueues to connections",
		},
	)

	PresenceEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_evictions_total",
			Help: "Total number of connections purged from rooms",
		},
		[]string{"reason"},
	)

	PresenceAdmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_admissions_total",
			Help: "Total number of connection admission decisions",
		},
		[]string{"outcome"},
	)

	PresenceInboundDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_inbound_dropped_total",
			Help: "Total number of inbound client frames dropped without effect",
		},
		[]string{"reason"},
	)

	PresenceInboundAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "presence_inbound_updates_total",
			Help: "Total number of presence updates applied",
		},
	)

	HeartbeatSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presence_heartbeat_sweep_duration_seconds",
			Help:    "Duration of a heartbeat sweep over all rooms",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// Membership Metrics
	MembershipLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_lookups_total",
			Help: "Total number of trip membership lookups",
		},
		[]string{"backend", "outcome"}, // outcome: "member", "not_member", "error", "cache_hit"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Notification ingest Metrics
	NotificationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_ingested_total",
			Help: "Total number of notifications accepted for fan-out",
		},
		[]string{"source"}, // "http", "nats"
	)

	IngestDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_messages_dropped_total",
			Help: "Total number of ingest messages acknowledged without effect",
		},
		[]string{"topic", "reason"},
	)

	MembershipEventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_events_applied_total",
			Help: "Total number of membership grant and revoke events applied",
		},
		[]string{"action"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// SetRoomStats publishes the registry's current room and connection counts.
func SetRoomStats(rooms, connections int) {
	PresenceRooms.Set(float64(rooms))
	PresenceConnections.Set(float64(connections))
}

// RecordMessageSent counts a successful enqueue of msgType.
func RecordMessageSent(msgType string) {
	PresenceMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordSendFailure counts a failed enqueue.
func RecordSendFailure() {
	PresenceSendFailures.Inc()
}

// RecordEvictions counts n connections purged for reason.
func RecordEvictions(reason string, n int) {
	if n <= 0 {
		return
	}
	PresenceEvictions.WithLabelValues(reason).Add(float64(n))
}

// RecordAdmission counts an admission decision.
func RecordAdmission(outcome string) {
	PresenceAdmissions.WithLabelValues(outcome).Inc()
}

// RecordInboundDropped counts a dropped client frame.
func RecordInboundDropped(reason string) {
	PresenceInboundDropped.WithLabelValues(reason).Inc()
}

// RecordHeartbeatSweep observes the duration of one sweep.
func RecordHeartbeatSweep(duration time.Duration) {
	HeartbeatSweepDuration.Observe(duration.Seconds())
}

// RecordMembershipLookup counts a membership lookup.
func RecordMembershipLookup(backend, outcome string) {
	MembershipLookups.WithLabelValues(backend, outcome).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordNotificationIngested counts a notification accepted from source.
func RecordNotificationIngested(source string) {
	NotificationsIngested.WithLabelValues(source).Inc()
}

// RecordIngestDropped counts an ingest message acked without effect.
func RecordIngestDropped(topic, reason string) {
	IngestDropped.WithLabelValues(topic, reason).Inc()
}

// RecordMembershipEvent counts an applied membership event.
func RecordMembershipEvent(action string) {
	MembershipEventsApplied.WithLabelValues(action).Inc()
}

// SetCircuitBreakerState publishes a breaker state (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCircuitBreakerTransition counts a breaker moving between states.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}
