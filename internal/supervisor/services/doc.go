// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package services provides suture.Service wrappers for InsiderWatch components
that do not already expose a Serve(ctx) error method.

# Available Services

HTTP Server (HTTPServerService):
  - Runs ListenAndServe in a goroutine
  - Graceful Shutdown with its own timeout once the tree context is canceled

Embedded NATS (EmbeddedNATSService):
  - Owns the lifetime of an in-process nats-server started at boot
  - Reports a dead server to the supervisor

Risk Checkpoints (CheckpointService):
  - Writes the per-user risk table to the badger checkpoint store on an interval
  - Writes a final checkpoint during shutdown

Storage Monitor (StorageMonitorService):
  - Pings DuckDB through the circuit breaker
  - Exponential backoff between probes while storage is down

The scheduler, websocket hub, NATS ingestor and inbox watcher implement
suture.Service themselves and are added to the tree directly.

# Error Handling

Return values determine supervisor behavior:

	nil         -> Service stopped cleanly, will not restart
	error       -> Service crashed, supervisor will restart
	ctx.Err()   -> Shutdown requested, normal termination

# Usage Example

	tree, _ := supervisor.NewSupervisorTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewCheckpointService(stateStore, checkpoints, 30*time.Second, logger))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	errCh := tree.ServeBackground(ctx)
*/
package services
