// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package websocket pushes engine state to dashboard clients.

The package uses gorilla/websocket with a hub-client architecture:

	┌──────────────┐   BroadcastJSON   ┌──────────┐
	│ detection    │ ────────────────► │   Hub    │
	│ Engine       │                   └────┬─────┘
	└──────────────┘                        │
	                        ┌───────────────┼───────────────┐
	                        │               │               │
	                     Client1         Client2         Client3

Each client has two goroutines:
  - readPump: reads from the connection and answers "ping" with "pong"
  - writePump: writes queued messages and sends protocol pings

Message Types:

  - incident: a security incident was raised and the user is locked
  - anomaly: the anomaly classifier flagged an event below the threshold
  - snapshot: every user's risk state and the engine statistics
  - control: start, stop, pause, resume, reset or load
  - ping / pong: keepalive

Every message is the envelope {"type": "...", "data": {...}}.

Slow clients whose send buffer is full are dropped rather than blocking the
broadcast. The hub runs under suture through RunWithContext; on shutdown it
closes every client.

Usage:

	hub := websocket.NewHub()
	go hub.RunWithContext(ctx)

	engine.SetBroadcaster(hub)
	r.Get("/api/v1/ws", websocket.NewHandler(hub, origins, engine.Snapshot).ServeHTTP)
*/
package websocket
