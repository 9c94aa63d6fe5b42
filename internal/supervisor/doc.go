// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package supervisor runs the InsiderWatch services under a suture v4 tree.

# Overview

Services are grouped into three layers so a failure in one does not restart
the others:

	RootSupervisor ("insiderwatch")
	├── DataSupervisor ("data-layer")
	│   ├── CheckpointService (if storage.checkpoint_path is set)
	│   ├── StorageMonitorService
	│   └── EmbeddedNATSService (if ingest.nats.embedded)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Scheduler ("detection-scheduler")
	│   ├── Hub ("websocket-hub")
	│   ├── NATSIngestor (if ingest.nats.enabled)
	│   └── InboxWatcher (if ingest.inbox.dir is set)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A broker outage restarts the NATS ingestor with backoff while the scheduler
keeps scoring simulated events and the HTTP API keeps answering.

# Restart Policy

  - FailureThreshold: failures tolerated before backoff (default 5)
  - FailureDecay: seconds for the failure count to halve (default 30)
  - FailureBackoff: wait once the threshold is crossed (default 15s)
  - ShutdownTimeout: per-service stop timeout (default 10s)

A service that returns suture.ErrDoNotRestart is not restarted.

# Logging

Supervisor events go through sutureslog. cmd/server passes
logging.NewSlogLogger(), so they land in the same zerolog stream as the rest
of the process.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return err
	}
	tree.AddMessagingService(sched)
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
