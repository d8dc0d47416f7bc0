// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

// Command waypointctl is an operator tool for a running Waypoint server. It
// mints development tokens, posts notifications to the ingest endpoint and
// watches a trip room from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/docopt/docopt-go"

	"github.com/tomtom215/waypoint/internal/logging"
)

const version = "0.1.0"

const usage = `Waypoint control.

Usage:
    waypointctl token --secret=<secret> --user=<id> --name=<name>
        [--role=<role>] [--ttl=<ttl>]
    waypointctl notify --url=<url> --token=<jwt> <tripId> <type>
        [--exclude=<userId>] [--data=<json>]
    waypointctl watch --url=<url> --token=<jwt> <tripId>
        [--count=<n>] [--day=<dayId>] [--pattern=<patternId>] [--origin=<origin>]
    waypointctl -h | --help
    waypointctl --version

Options:
    -h --help               Show this screen.
    --version               Show version.
    --secret=<secret>       JWT signing secret shared with the server.
    --user=<id>             Subject (user ID) of the minted token.
    --name=<name>           Display name carried in the token.
    --role=<role>           Token role claim, e.g. "service" for ingest.
    --ttl=<ttl>             Token lifetime [default: 1h].
    --url=<url>             Server base URL, e.g. http://localhost:8340.
    --token=<jwt>           Bearer token.
    --exclude=<userId>      User who should not receive the notification.
    --data=<json>           JSON object merged into the notification.
    --count=<n>             Exit after this many frames [default: 0].
    --day=<dayId>           Send a presence update focusing this day.
    --pattern=<patternId>   Pattern to send with --day.
    --origin=<origin>       Origin header for the upgrade; defaults to the --url origin.`

func main() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid arguments")
	}

	if err := run(opts); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(opts docopt.Opts) error {
	if cmd, _ := opts.Bool("token"); cmd {
		return tokenCommand(opts, os.Stdout)
	}
	if cmd, _ := opts.Bool("notify"); cmd {
		return notifyCommand(opts, os.Stdout)
	}
	if cmd, _ := opts.Bool("watch"); cmd {
		return watchCommand(opts, os.Stdout)
	}
	return fmt.Errorf("no command given")
}
