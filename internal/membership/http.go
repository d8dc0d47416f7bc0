// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package membership

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/metrics"
)

const breakerName = "membership-http"

// ErrUnexpectedStatus is returned for responses other than 200 and 404.
var ErrUnexpectedStatus = errors.New("unexpected membership service status")

type memberResponse struct {
	Role string `json:"role"`
}

// HTTPStore asks a remote service for trip roles.
//
// GET {ServiceURL}/trips/{tripId}/members/{userId} answers 200 {"role": "..."}
// for members and 404 for non-members. Transport errors and other statuses
// count against the circuit breaker.
type HTTPStore struct {
	baseURL string
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[string]
}

// NewHTTPStore builds a store from cfg.
func NewHTTPStore(cfg *config.MembershipConfig) (*HTTPStore, error) {
	base, err := url.Parse(cfg.ServiceURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid membership service url %q", cfg.ServiceURL)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	metrics.SetCircuitBreakerState(breakerName, 0)

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Membership circuit breaker state change")
			metrics.SetCircuitBreakerState(name, stateToInt(to))
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
		},
	})

	return &HTTPStore{
		baseURL: strings.TrimRight(cfg.ServiceURL, "/"),
		token:   cfg.ServiceToken,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		cb:      cb,
	}, nil
}

// Role implements Checker.
func (s *HTTPStore) Role(ctx context.Context, tripID, userID string) (string, error) {
	role, err := s.cb.Execute(func() (string, error) {
		return s.fetch(ctx, tripID, userID)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordMembershipLookup(BackendHTTP, outcomeRejected)
		return "", fmt.Errorf("membership service unavailable: %w", err)
	case err != nil:
		metrics.RecordMembershipLookup(BackendHTTP, outcomeError)
		return "", err
	case role == "":
		metrics.RecordMembershipLookup(BackendHTTP, outcomeNotMember)
	default:
		metrics.RecordMembershipLookup(BackendHTTP, outcomeMember)
	}
	return role, nil
}

// State returns the breaker state.
func (s *HTTPStore) State() gobreaker.State {
	return s.cb.State()
}

// Close implements Store.
func (s *HTTPStore) Close() {
	s.client.CloseIdleConnections()
}

func (s *HTTPStore) fetch(ctx context.Context, tripID, userID string) (string, error) {
	endpoint := s.baseURL + "/trips/" + url.PathEscape(tripID) + "/members/" + url.PathEscape(userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to build membership request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("membership request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var body memberResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
			return "", fmt.Errorf("failed to decode membership response: %w", err)
		}
		return body.Role, nil
	case http.StatusNotFound:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

func stateToInt(state gobreaker.State) int {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
