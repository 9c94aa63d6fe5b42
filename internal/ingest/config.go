// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package ingest

import (
	"strings"
	"time"

	"github.com/tomtom215/insiderwatch/internal/config"
)

// SubscriberConfig holds JetStream consumer settings.
type SubscriberConfig struct {
	URL         string
	Subject     string
	StreamName  string
	QueueGroup  string
	DurableName string

	// SubscribersCount is the number of concurrent message processors. Events
	// are queued in arrival order only when this is 1.
	SubscribersCount int

	AckWaitTimeout time.Duration
	CloseTimeout   time.Duration
	MaxDeliver     int
	MaxAckPending  int
	MaxReconnects  int
	ReconnectWait  time.Duration
}

// DefaultSubscriberConfig returns production defaults.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		URL:              "nats://127.0.0.1:4222",
		Subject:          "insiderwatch.events",
		StreamName:       "INSIDERWATCH_EVENTS",
		QueueGroup:       "insiderwatch",
		DurableName:      "insiderwatch-ingest",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    256,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
	}
}

// SubscriberConfigFromSettings overlays the loaded configuration on the
// defaults. clientURL, when set, replaces the configured URL, which is how an
// embedded server is wired in.
func SubscriberConfigFromSettings(n config.NATSIngestConfig, clientURL string) SubscriberConfig {
	cfg := DefaultSubscriberConfig()
	if n.URL != "" {
		cfg.URL = n.URL
	}
	if clientURL != "" {
		cfg.URL = clientURL
	}
	if n.Subject != "" {
		cfg.Subject = n.Subject
	}
	if n.QueueGroup != "" {
		cfg.QueueGroup = n.QueueGroup
	}
	if n.Durable != "" {
		cfg.DurableName = n.Durable
	}
	return cfg
}

// StreamConfig describes the JetStream stream that holds inbound events.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
}

// StreamConfigFor returns the stream definition for a subscriber. Stream
// names may not contain dots or wildcards, so the name is fixed and the
// subject is bound explicitly.
func StreamConfigFor(sub SubscriberConfig) StreamConfig {
	name := sub.StreamName
	if name == "" {
		name = streamNameFor(sub.Subject)
	}
	return StreamConfig{
		Name:            name,
		Subjects:        []string{sub.Subject},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
	}
}

func streamNameFor(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "ALL", ">", "ALL")
	return strings.ToUpper(r.Replace(subject))
}

// ServerConfig holds embedded NATS server settings.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "data/nats",
		JetStreamMaxMem:   64 << 20,
		JetStreamMaxStore: 1 << 30,
	}
}

// ServerConfigFromSettings overlays the loaded configuration on the defaults.
func ServerConfigFromSettings(n config.NATSIngestConfig) ServerConfig {
	cfg := DefaultServerConfig()
	if n.EmbeddedPort != 0 {
		cfg.Port = n.EmbeddedPort
	}
	if n.StoreDir != "" {
		cfg.StoreDir = n.StoreDir
	}
	return cfg
}
