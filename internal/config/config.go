// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// Config is the complete InsiderWatch configuration.
type Config struct {
	Users     []models.User   `koanf:"users"`
	Rules     RulesConfig     `koanf:"rules"`
	Engine    EngineConfig    `koanf:"engine"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Storage   StorageConfig   `koanf:"storage"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Notify    NotifyConfig    `koanf:"notify"`
	Ingest    IngestConfig    `koanf:"ingest"`
}

// RulesConfig maps activity kinds to base risk deltas.
type RulesConfig struct {
	Activities  map[string]float64 `koanf:"activities"`
	DefaultRisk float64            `koanf:"default_risk"`
}

// EngineConfig holds the scoring constants used by each tick.
type EngineConfig struct {
	IncidentThreshold float64 `koanf:"incident_threshold"`
	RiskLow           float64 `koanf:"risk_low"`
	RiskMedium        float64 `koanf:"risk_medium"`

	AnomalyPenalty       float64 `koanf:"anomaly_penalty"`
	AnomalyMinSamples    int     `koanf:"anomaly_min_samples"`
	RetrainInterval      int     `koanf:"retrain_interval"`
	AnomalyContamination float64 `koanf:"anomaly_contamination"`
	FeatureHistorySize   int     `koanf:"feature_history_size"`

	SentimentProbability       float64 `koanf:"sentiment_probability"`
	SentimentPenalty           float64 `koanf:"sentiment_penalty"`
	NegativeSentimentThreshold float64 `koanf:"negative_sentiment_threshold"`

	PointsNormal            float64 `koanf:"points_normal"`
	PointsLowRisk           float64 `koanf:"points_low_risk"`
	LowRiskBonus            float64 `koanf:"low_risk_bonus"`
	LowRiskBonusProbability float64 `koanf:"low_risk_bonus_probability"`

	// ClassifierTimeout bounds each classifier call made inside a tick.
	ClassifierTimeout time.Duration `koanf:"classifier_timeout"`

	// Seed for the engine's random source. 0 seeds from the clock.
	Seed int64 `koanf:"seed"`
}

// SchedulerConfig controls the tick and decay loops.
type SchedulerConfig struct {
	TickInterval  time.Duration `koanf:"tick_interval"`
	DecayInterval time.Duration `koanf:"decay_interval"`
	DecayAmount   float64       `koanf:"decay_amount"`
	DecayPoints   float64       `koanf:"decay_points"`
	Autostart     bool          `koanf:"autostart"`
}

// StorageConfig selects the event/incident store and its resilience settings.
type StorageConfig struct {
	// Driver is "duckdb" or "memory".
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`

	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
	RetryInitial    time.Duration `koanf:"retry_initial"`
	RetryMax        time.Duration `koanf:"retry_max"`

	// CheckpointPath is the badger directory for risk checkpoints. Empty disables them.
	CheckpointPath     string        `koanf:"checkpoint_path"`
	CheckpointInterval time.Duration `koanf:"checkpoint_interval"`
	CheckpointRetain   int           `koanf:"checkpoint_retain"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// LoadDir confines path loads on POST /api/v1/engine/load. Relative
	// request paths resolve against it. Empty disables path loads.
	LoadDir string `koanf:"load_dir"`

	// LoadAllowedHosts lists the hosts URL loads may fetch from. "*" allows
	// any host. Empty disables URL loads.
	LoadAllowedHosts []string `koanf:"load_allowed_hosts"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// NotifyConfig configures incident fan-out. Each notifier is enabled by
// setting its address.
type NotifyConfig struct {
	Webhook WebhookNotifyConfig `koanf:"webhook"`
	Kafka   KafkaNotifyConfig   `koanf:"kafka"`
	Redis   RedisNotifyConfig   `koanf:"redis"`
}

// WebhookNotifyConfig posts incidents to an HTTP endpoint.
type WebhookNotifyConfig struct {
	URL         string            `koanf:"url"`
	Headers     map[string]string `koanf:"headers"`
	RateLimitMS int               `koanf:"rate_limit_ms"`
	Timeout     time.Duration     `koanf:"timeout"`
}

// KafkaNotifyConfig publishes incidents to a Kafka topic.
type KafkaNotifyConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// RedisNotifyConfig publishes incidents on a Redis pub/sub channel.
type RedisNotifyConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Channel  string `koanf:"channel"`
}

// IngestConfig configures external event feeds into the replay queue.
type IngestConfig struct {
	NATS  NATSIngestConfig  `koanf:"nats"`
	Inbox InboxIngestConfig `koanf:"inbox"`
}

// NATSIngestConfig subscribes to a NATS JetStream subject for events.
type NATSIngestConfig struct {
	Enabled    bool   `koanf:"enabled"`
	URL        string `koanf:"url"`
	Subject    string `koanf:"subject"`
	QueueGroup string `koanf:"queue_group"`
	Durable    string `koanf:"durable"`

	// Embedded starts an in-process NATS server on EmbeddedPort.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedPort int    `koanf:"embedded_port"`
	StoreDir     string `koanf:"store_dir"`
}

// InboxIngestConfig watches a drop directory for CSV/JSON files.
type InboxIngestConfig struct {
	Dir string `koanf:"dir"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
