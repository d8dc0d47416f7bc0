// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/waypoint/internal/auth"
	"github.com/tomtom215/waypoint/internal/config"
	"github.com/tomtom215/waypoint/internal/logging"
	"github.com/tomtom215/waypoint/internal/presence"
)

func tokenCommand(opts docopt.Opts, out io.Writer) error {
	secret, _ := opts.String("--secret")
	user, _ := opts.String("--user")
	name, _ := opts.String("--name")
	role, _ := opts.String("--role")
	ttlStr, _ := opts.String("--ttl")

	ttl, err := time.ParseDuration(ttlStr)
	if err != nil || ttl <= 0 {
		return fmt.Errorf("invalid --ttl %q", ttlStr)
	}

	manager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: secret, SessionTimeout: ttl})
	if err != nil {
		return err
	}
	token, err := manager.GenerateToken(user, name, role)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// buildNotification merges data with the type and trip ID. Explicit
// arguments win over keys in data.
func buildNotification(tripID, typ, exclude, data string) ([]byte, error) {
	message := map[string]interface{}{}
	if data != "" {
		if err := json.Unmarshal([]byte(data), &message); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
	}
	message["type"] = typ
	message["tripId"] = tripID

	body := map[string]interface{}{"message": message}
	if exclude != "" {
		body["excludeUserId"] = exclude
	}
	return json.Marshal(body)
}

func notifyCommand(opts docopt.Opts, out io.Writer) error {
	base, _ := opts.String("--url")
	token, _ := opts.String("--token")
	tripID, _ := opts.String("<tripId>")
	typ, _ := opts.String("<type>")
	exclude, _ := opts.String("--exclude")
	data, _ := opts.String("--data")

	body, err := buildNotification(tripID, typ, exclude, data)
	if err != nil {
		return err
	}

	endpoint := strings.TrimRight(base, "/") + "/api/v1/trips/" + url.PathEscape(tripID) + "/notifications"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(string(respBody)))
	return err
}

// socketURL maps an http(s) base URL to the trip's ws(s) endpoint and the
// matching http(s) origin.
func socketURL(base, tripID string) (target, origin string, err error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme, origin = "ws", "http://"+u.Host
	case "https", "wss":
		u.Scheme, origin = "wss", "https://"+u.Host
	default:
		return "", "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/trips/" + url.PathEscape(tripID)
	return u.String(), origin, nil
}

func watchCommand(opts docopt.Opts, out io.Writer) error {
	base, _ := opts.String("--url")
	token, _ := opts.String("--token")
	tripID, _ := opts.String("<tripId>")
	day, _ := opts.String("--day")
	pattern, _ := opts.String("--pattern")
	count, err := opts.Int("--count")
	if err != nil || count < 0 {
		return fmt.Errorf("invalid --count")
	}

	target, origin, err := socketURL(base, tripID)
	if err != nil {
		return err
	}
	if o, _ := opts.String("--origin"); o != "" {
		origin = o
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Origin", origin)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (%s)", target, err, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	logging.Info().Str("url", target).Msg("Connected")

	if day != "" {
		update := presenceUpdate{Type: presence.TypePresenceUpdate, DayID: &day}
		if pattern != "" {
			update.PatternID = &pattern
		}
		if err := conn.WriteJSON(update); err != nil {
			return fmt.Errorf("send presence update: %w", err)
		}
	}

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	if err := readFrames(conn, out, count); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// presenceUpdate always carries patternId, null when unset.
type presenceUpdate struct {
	Type      string  `json:"type"`
	DayID     *string `json:"dayId"`
	PatternID *string `json:"patternId"`
}

// readFrames prints text frames until the socket closes or count frames
// have been printed. A zero count means no limit.
func readFrames(conn *websocket.Conn, out io.Writer, count int) error {
	for n := 0; count == 0 || n < count; n++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				_, _ = fmt.Fprintf(out, "closed: %d %s\n", closeErr.Code, closeErr.Text)
				if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
					return nil
				}
				return fmt.Errorf("socket closed with %d", closeErr.Code)
			}
			return err
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	}
	return nil
}
