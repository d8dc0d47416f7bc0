// Waypoint - Collaborative Trip Planning Presence Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package services adapts Waypoint components to suture.Service.

  - HTTPServerService: ListenAndServe/Shutdown to Serve.
  - WebSocketHubService: delegates to websocket.Hub.RunWithContext, which
    closes every socket with 1001 and empties the room registry on shutdown.
  - NATSComponentsService (-tags nats): Start/Shutdown of the NATS ingest.

presence.Monitor implements suture.Service itself and is added directly.
Interfaces here are narrow so the package never imports cmd/server.
*/
package services
