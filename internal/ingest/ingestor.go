// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/insiderwatch/internal/logging"
)

// NATSIngestor runs an EventHandler against a JetStream subscription. It
// implements suture.Service: each Serve call opens a fresh subscriber, so a
// restart after a broker failure reconnects from scratch.
type NATSIngestor struct {
	cfg     SubscriberConfig
	handler *EventHandler

	// newSubscriber is replaced in tests.
	newSubscriber func() (message.Subscriber, error)
	ensureStream  func(ctx context.Context) error
}

// NewNATSIngestor creates an ingestor for cfg.Subject.
func NewNATSIngestor(cfg SubscriberConfig, handler *EventHandler) *NATSIngestor {
	n := &NATSIngestor{cfg: cfg, handler: handler}
	n.newSubscriber = func() (message.Subscriber, error) {
		return NewSubscriber(&n.cfg, logging.NewWatermillAdapter())
	}
	n.ensureStream = func(ctx context.Context) error {
		if n.cfg.StreamName == "" {
			return nil
		}
		return EnsureStreamAt(ctx, n.cfg.URL, StreamConfigFor(n.cfg))
	}
	return n
}

// Serve subscribes and processes messages until ctx is canceled.
func (n *NATSIngestor) Serve(ctx context.Context) error {
	if err := n.ensureStream(ctx); err != nil {
		return fmt.Errorf("nats ingest: %w", err)
	}

	sub, err := n.newSubscriber()
	if err != nil {
		return fmt.Errorf("nats ingest: %w", err)
	}
	defer func() {
		if cerr := sub.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close ingest subscriber")
		}
	}()

	logging.Info().
		Str("url", n.cfg.URL).
		Str("subject", n.cfg.Subject).
		Str("queue_group", n.cfg.QueueGroup).
		Msg("NATS ingest started")

	err = n.handler.Run(ctx, sub, n.cfg.Subject)
	if err == nil || errors.Is(err, context.Canceled) {
		logging.Info().Msg("NATS ingest stopped")
	}
	if err == nil && ctx.Err() == nil {
		// The subscription closed underneath us; let the supervisor restart.
		return errors.New("nats ingest: subscription closed")
	}
	return err
}

// String implements fmt.Stringer for suture logging.
func (n *NATSIngestor) String() string {
	return "nats-ingest"
}
