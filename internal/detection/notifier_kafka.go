// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaNotifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka notifier.
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
}

// KafkaNotifier publishes incidents to a Kafka topic, keyed by user ID so
// that one user's incidents stay ordered within a partition.
type KafkaNotifier struct {
	writer MessageWriter
	topic  string
}

// NewKafkaNotifier creates a notifier backed by a synchronous kafka.Writer.
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka notifier: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka notifier: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewKafkaNotifierWithWriter(w, cfg.Topic), nil
}

// NewKafkaNotifierWithWriter wraps an existing writer.
func NewKafkaNotifierWithWriter(w MessageWriter, topic string) *KafkaNotifier {
	return &KafkaNotifier{writer: w, topic: topic}
}

// Name returns the notifier name.
func (n *KafkaNotifier) Name() string {
	return "kafka"
}

// Enabled returns whether this notifier is enabled.
func (n *KafkaNotifier) Enabled() bool {
	return n.writer != nil
}

// Send publishes one incident.
func (n *KafkaNotifier) Send(ctx context.Context, inc *models.Incident) error {
	payload := newIncidentPayload(inc)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal kafka payload: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(inc.UserID),
		Value: body,
		Time:  payload.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeIncident)},
			{Key: "alert_type", Value: []byte(inc.AlertType)},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
