// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/validation"
)

// Validate checks the configuration. Any error here aborts startup.
func (c *Config) Validate() error {
	if err := c.validateUsers(); err != nil {
		return err
	}
	if err := c.validateRules(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUsers() error {
	if len(c.Users) == 0 {
		return models.ErrNoUsers
	}
	seen := make(map[string]struct{}, len(c.Users))
	for i := range c.Users {
		u := &c.Users[i]
		if verr := validation.ValidateStruct(u); verr != nil {
			return fmt.Errorf("%w: users[%d]: %s", models.ErrNoUsers, i, verr.Error())
		}
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("users[%d]: duplicate user id %q", i, u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

func (c *Config) validateRules() error {
	if c.Rules.DefaultRisk < 0 {
		return fmt.Errorf("rules.default_risk must be >= 0, got %v", c.Rules.DefaultRisk)
	}
	for activity, delta := range c.Rules.Activities {
		if strings.TrimSpace(activity) == "" {
			return fmt.Errorf("rules.activities contains an empty activity name")
		}
		if delta < 0 {
			return fmt.Errorf("rules.activities[%s] must be >= 0, got %v", activity, delta)
		}
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.IncidentThreshold <= 0 {
		return fmt.Errorf("INCIDENT_THRESHOLD must be > 0, got %v", e.IncidentThreshold)
	}
	if e.RiskLow < 0 || e.RiskMedium < e.RiskLow || e.RiskMedium > e.IncidentThreshold {
		return fmt.Errorf("risk levels must satisfy 0 <= RISK_LOW <= RISK_MEDIUM <= INCIDENT_THRESHOLD, got %v/%v/%v",
			e.RiskLow, e.RiskMedium, e.IncidentThreshold)
	}
	if e.AnomalyPenalty < 0 || e.SentimentPenalty < 0 {
		return fmt.Errorf("anomaly and sentiment penalties must be >= 0")
	}
	if e.AnomalyMinSamples < 1 {
		return fmt.Errorf("ANOMALY_MIN_SAMPLES must be >= 1, got %d", e.AnomalyMinSamples)
	}
	if e.RetrainInterval < 1 {
		return fmt.Errorf("RETRAIN_INTERVAL must be >= 1, got %d", e.RetrainInterval)
	}
	if e.AnomalyContamination <= 0 || e.AnomalyContamination >= 0.5 {
		return fmt.Errorf("ANOMALY_CONTAMINATION must be in (0, 0.5), got %v", e.AnomalyContamination)
	}
	if e.FeatureHistorySize < e.AnomalyMinSamples {
		return fmt.Errorf("FEATURE_HISTORY_SIZE (%d) must be >= ANOMALY_MIN_SAMPLES (%d)",
			e.FeatureHistorySize, e.AnomalyMinSamples)
	}
	if err := validateProbability("SENTIMENT_PROBABILITY", e.SentimentProbability); err != nil {
		return err
	}
	if err := validateProbability("LOW_RISK_BONUS_PROBABILITY", e.LowRiskBonusProbability); err != nil {
		return err
	}
	if e.NegativeSentimentThreshold < -1 || e.NegativeSentimentThreshold > 1 {
		return fmt.Errorf("NEGATIVE_SENTIMENT_THRESHOLD must be in [-1, 1], got %v", e.NegativeSentimentThreshold)
	}
	if e.PointsNormal < 0 || e.PointsLowRisk < 0 || e.LowRiskBonus < 0 {
		return fmt.Errorf("security point awards must be >= 0")
	}
	if e.ClassifierTimeout <= 0 {
		return fmt.Errorf("CLASSIFIER_TIMEOUT must be > 0, got %v", e.ClassifierTimeout)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	s := c.Scheduler
	if s.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be > 0, got %v", s.TickInterval)
	}
	if s.DecayInterval <= 0 {
		return fmt.Errorf("DECAY_INTERVAL must be > 0, got %v", s.DecayInterval)
	}
	if s.DecayAmount < 0 || s.DecayPoints < 0 {
		return fmt.Errorf("DECAY_AMOUNT and DECAY_POINTS must be >= 0")
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := c.Storage
	switch s.Driver {
	case "duckdb":
		if s.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required when STORAGE_DRIVER=duckdb")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be duckdb or memory, got %q", s.Driver)
	}
	if s.BreakerFailures == 0 {
		return fmt.Errorf("BREAKER_FAILURES must be >= 1")
	}
	if s.BreakerTimeout <= 0 {
		return fmt.Errorf("BREAKER_TIMEOUT must be > 0, got %v", s.BreakerTimeout)
	}
	if s.RetryInitial <= 0 || s.RetryMax < s.RetryInitial {
		return fmt.Errorf("storage retry backoff must satisfy 0 < STORAGE_RETRY <= STORAGE_RETRY_MAX")
	}
	if s.CheckpointPath != "" && s.CheckpointInterval <= 0 {
		return fmt.Errorf("CHECKPOINT_INTERVAL must be > 0 when CHECKPOINT_PATH is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", s.Port)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be > 0, got %v", s.Timeout)
	}
	if !s.RateLimitDisabled && (s.RateLimitRequests < 1 || s.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	for _, host := range s.LoadAllowedHosts {
		if host == "" || strings.ContainsAny(host, "/ ") {
			return fmt.Errorf("LOAD_ALLOWED_HOSTS entries must be bare host names, got %q", host)
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	if u := c.Notify.Webhook.URL; u != "" {
		if err := validateEndpointURL(u, "WEBHOOK_URL"); err != nil {
			return err
		}
	}
	if len(c.Notify.Kafka.Brokers) > 0 && c.Notify.Kafka.Topic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	if c.Notify.Redis.Addr != "" && c.Notify.Redis.Channel == "" {
		return fmt.Errorf("REDIS_CHANNEL is required when REDIS_ADDR is set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	n := c.Ingest.NATS
	if !n.Enabled {
		return nil
	}
	if n.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if n.Embedded {
		if n.EmbeddedPort < 1 || n.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535, got %d", n.EmbeddedPort)
		}
		return nil
	}
	if err := validateNATSURL(n.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func validateProbability(name string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, p)
	}
	return nil
}

// validateEndpointURL accepts http(s) URLs with a host; paths are allowed.
func validateEndpointURL(rawURL, fieldName string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	return nil
}

func validateNATSURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	validSchemes := map[string]bool{"nats": true, "tls": true, "ws": true, "wss": true}
	if !validSchemes[parsed.Scheme] {
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}
