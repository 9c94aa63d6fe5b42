// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package ingest feeds external activity into the replay queue.

Two transports are supported:

  - NATS JetStream: NATSIngestor subscribes through watermill-nats, decodes
    each message as a JSON event document and queues the accepted events.
    EmbeddedServer runs an in-process NATS server for single-node installs.
  - Drop directory: InboxWatcher watches a directory with fsnotify and loads
    every .csv or .json file once it has stopped changing.

Both transports go through source.Loader, so field aliases, validation and
the known-user check are identical to the HTTP load endpoint. Accepted events
are handed to a Queue (the detection engine), which stores them and switches
the event source to replay.

Message handling:

	payload -> Loader.LoadReader -> Queue.LoadEvents
	   |              |                   |
	   |        parse error: ack     storage down: nack (redelivered)
	   |        (counted invalid)    (counted failed)
	   v
	  ack (counted stored)

A document that cannot be parsed is acknowledged so it is not redelivered
forever. Rejected rows inside an otherwise valid document are logged.

Supervision:

NATSIngestor and InboxWatcher implement suture.Service and run in the
messaging layer of the supervisor tree.
*/
package ingest
