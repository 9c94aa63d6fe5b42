// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/source"
)

// Transport labels for metrics and event sources.
const (
	TransportNATS  = "nats"
	TransportInbox = "inbox"
)

// Ingest results.
const (
	resultStored  = "stored"
	resultInvalid = "invalid"
	resultFailed  = "failed"
)

// Queue accepts events for replay. detection.Engine implements it.
type Queue interface {
	LoadEvents(ctx context.Context, evs []*models.Event) (int, error)
}

// Parser turns a raw document into validated events. source.Loader
// implements it.
type Parser interface {
	LoadReader(ctx context.Context, r io.Reader, sourceTag, format string) (*source.LoadReport, error)
}

// EventHandler decodes event messages and queues them.
type EventHandler struct {
	parser Parser
	queue  Queue
}

// NewEventHandler creates a handler.
func NewEventHandler(parser Parser, queue Queue) *EventHandler {
	return &EventHandler{parser: parser, queue: queue}
}

// Handle processes one message. A nil return acks the message. Only queueing
// failures return an error, so malformed payloads are not redelivered.
func (h *EventHandler) Handle(ctx context.Context, topic string, msg *message.Message) error {
	log := logging.Ctx(ctx).With().Str("message_uuid", msg.UUID).Str("topic", topic).Logger()

	report, err := h.parser.LoadReader(ctx, bytes.NewReader(msg.Payload), "NATS: "+topic, source.FormatJSON)
	if err != nil {
		metrics.RecordIngest(TransportNATS, resultInvalid)
		log.Warn().Err(err).Msg("Dropping unparsable event message")
		return nil
	}
	for _, rej := range report.Rejected {
		log.Warn().Int("row", rej.Row).Str("reason", rej.Reason).Msg("Rejected event in message")
	}
	if len(report.Events) == 0 {
		metrics.RecordIngest(TransportNATS, resultInvalid)
		return nil
	}

	n, err := h.queue.LoadEvents(ctx, report.Events)
	if err != nil {
		metrics.RecordIngest(TransportNATS, resultFailed)
		return fmt.Errorf("queue %d events: %w", len(report.Events), err)
	}
	metrics.RecordIngest(TransportNATS, resultStored)
	log.Debug().Int("queued", n).Int("rejected", len(report.Rejected)).Msg("Event message queued")
	return nil
}

// Run consumes topic until ctx is canceled or the subscription closes.
// Messages are acked when Handle succeeds and nacked otherwise.
func (h *EventHandler) Run(ctx context.Context, sub message.Subscriber, topic string) error {
	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := h.Handle(ctx, topic, msg); err != nil {
				logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Event message will be redelivered")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}
