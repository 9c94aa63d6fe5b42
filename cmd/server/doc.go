// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package main is the entry point for the InsiderWatch server.

InsiderWatch scores user activity events against a per-user risk ledger,
locks accounts whose risk crosses the incident threshold, and exposes the
engine through an HTTP control API and a websocket dashboard feed.

# Application Architecture

The server runs under a Suture v4 supervision tree:

	RootSupervisor ("insiderwatch")
	├── DataSupervisor ("data-layer")
	│   ├── Storage monitor (DuckDB breaker probe)
	│   ├── Checkpoint service (badger, optional)
	│   └── Embedded NATS server (optional)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Detection scheduler (tick + decay loops)
	│   ├── WebSocket hub
	│   ├── NATS ingestor (optional)
	│   └── Inbox watcher (optional)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Startup order:

 1. Configuration: Koanf v2 (defaults, YAML file, environment)
 2. Logging: zerolog
 3. Storage: DuckDB or in-memory behind a circuit breaker
 4. Checkpoints: badger store, latest risk table restored into the state store
 5. Event source: replay over storage with simulation fallback; replay is
    selected at boot when unprocessed events are waiting
 6. Detection engine with webhook, Kafka and Redis notifiers
 7. Scheduler, websocket hub, ingest services
 8. HTTP server

# Signal Handling

SIGINT and SIGTERM cancel the root context. The tree stops the API layer,
then messaging, then data; the checkpoint service writes a final checkpoint
and in-flight incident notifications are awaited before storage closes.

# Example Usage

	export STORAGE_DRIVER=memory
	export LOG_FORMAT=console
	./insiderwatch

	curl -X POST localhost:8470/api/v1/engine/load --data-binary @events.csv
*/
package main
