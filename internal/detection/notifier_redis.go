// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// RedisConfig configures the Redis notifier.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"-"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// RedisNotifier publishes incidents on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier with its own client.
func NewRedisNotifier(cfg RedisConfig) (*RedisNotifier, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis notifier: address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisNotifierWithClient(client, cfg.Channel), nil
}

// NewRedisNotifierWithClient wraps an existing client. An empty channel uses
// "insiderwatch:incidents".
func NewRedisNotifierWithClient(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "insiderwatch:incidents"
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Name returns the notifier name.
func (n *RedisNotifier) Name() string {
	return "redis"
}

// Enabled returns whether this notifier is enabled.
func (n *RedisNotifier) Enabled() bool {
	return n.client != nil
}

// Ping checks connectivity.
func (n *RedisNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

// Send publishes one incident. Having no subscribers is not an error.
func (n *RedisNotifier) Send(ctx context.Context, inc *models.Incident) error {
	body, err := json.Marshal(newIncidentPayload(inc))
	if err != nil {
		return fmt.Errorf("failed to marshal redis payload: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", n.channel, err)
	}
	return nil
}

// Close closes the client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
