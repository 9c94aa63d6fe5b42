// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/rules"
)

// DefaultConfigPaths lists the config files searched, first match wins.
var DefaultConfigPaths = []string{
	"insiderwatch.yaml",
	"config.yaml",
	"/etc/insiderwatch/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// usersEnvKey is where the raw USERS variable lands before it is parsed.
const usersEnvKey = "users_env"

// DefaultUsers is the roster used when none is configured.
func DefaultUsers() []models.User {
	return []models.User{
		{ID: "user_A", Role: "developer"},
		{ID: "user_B", Role: "sales"},
		{ID: "user_C", Role: "analyst"},
		{ID: "user_D", Role: "admin"},
	}
}

func defaultConfig() *Config {
	return &Config{
		Users: DefaultUsers(),
		Rules: RulesConfig{
			Activities:  rules.DefaultActivities(),
			DefaultRisk: 0,
		},
		Engine: EngineConfig{
			IncidentThreshold:          20,
			RiskLow:                    5,
			RiskMedium:                 15,
			AnomalyPenalty:             8,
			AnomalyMinSamples:          10,
			RetrainInterval:            50,
			AnomalyContamination:       0.1,
			FeatureHistorySize:         5000,
			SentimentProbability:       0.3,
			SentimentPenalty:           6,
			NegativeSentimentThreshold: 0,
			PointsNormal:               1,
			PointsLowRisk:              0.5,
			LowRiskBonus:               0.5,
			LowRiskBonusProbability:    0.1,
			ClassifierTimeout:          250 * time.Millisecond,
			Seed:                       0,
		},
		Scheduler: SchedulerConfig{
			TickInterval:  1200 * time.Millisecond,
			DecayInterval: 5 * time.Second,
			DecayAmount:   1,
			DecayPoints:   0.5,
			Autostart:     true,
		},
		Storage: StorageConfig{
			Driver:             "duckdb",
			Path:               "data/insiderwatch.duckdb",
			BreakerFailures:    3,
			BreakerTimeout:     30 * time.Second,
			RetryInitial:       time.Second,
			RetryMax:           time.Minute,
			CheckpointPath:     "",
			CheckpointInterval: 30 * time.Second,
			CheckpointRetain:   500,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8470,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			LoadDir:           "data/load",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Notify: NotifyConfig{
			Webhook: WebhookNotifyConfig{
				RateLimitMS: 1000,
				Timeout:     10 * time.Second,
			},
			Kafka: KafkaNotifyConfig{
				Topic: "insiderwatch.incidents",
			},
			Redis: RedisNotifyConfig{
				Channel: "insiderwatch:incidents",
			},
		},
		Ingest: IngestConfig{
			NATS: NATSIngestConfig{
				Enabled:      false,
				URL:          "nats://127.0.0.1:4222",
				Subject:      "insiderwatch.events",
				QueueGroup:   "insiderwatch",
				Durable:      "insiderwatch-ingest",
				Embedded:     false,
				EmbeddedPort: 4222,
				StoreDir:     "data/nats",
			},
		},
	}
}

// LoadWithKoanf loads configuration in layers, highest priority last:
//  1. Built-in defaults
//  2. Optional YAML file
//  3. Environment variables
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processUsersEnv(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	mergeDefaultActivities(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// mergeDefaultActivities restores built-in activity kinds a file did not mention.
func mergeDefaultActivities(cfg *Config) {
	if cfg.Rules.Activities == nil {
		cfg.Rules.Activities = make(map[string]float64)
	}
	for activity, delta := range rules.DefaultActivities() {
		if _, ok := cfg.Rules.Activities[activity]; !ok {
			cfg.Rules.Activities[activity] = delta
		}
	}
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when set via env.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"server.load_allowed_hosts",
	"notify.kafka.brokers",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		if parts := splitList(strVal); len(parts) > 0 {
			if err := k.Set(path, parts); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// processUsersEnv turns USERS=id:role,id:role into the users list.
func processUsersEnv(k *koanf.Koanf) error {
	raw := k.String(usersEnvKey)
	if raw == "" {
		return nil
	}
	users, err := ParseUsers(raw)
	if err != nil {
		return fmt.Errorf("USERS is invalid: %w", err)
	}
	list := make([]interface{}, len(users))
	for i, u := range users {
		list[i] = map[string]interface{}{"id": u.ID, "role": u.Role}
	}
	if err := k.Set("users", list); err != nil {
		return fmt.Errorf("failed to set users: %w", err)
	}
	k.Delete(usersEnvKey)
	return nil
}

// ParseUsers parses a roster written as "id:role,id:role". The role is optional.
func ParseUsers(raw string) ([]models.User, error) {
	parts := splitList(raw)
	users := make([]models.User, 0, len(parts))
	for _, p := range parts {
		id, role, _ := strings.Cut(p, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("empty user id in %q", p)
		}
		users = append(users, models.User{ID: id, Role: strings.TrimSpace(role)})
	}
	if len(users) == 0 {
		return nil, models.ErrNoUsers
	}
	return users, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"users": usersEnvKey,

	"rules_default_risk": "rules.default_risk",

	"incident_threshold":           "engine.incident_threshold",
	"risk_low":                     "engine.risk_low",
	"risk_medium":                  "engine.risk_medium",
	"anomaly_penalty":              "engine.anomaly_penalty",
	"anomaly_min_samples":          "engine.anomaly_min_samples",
	"retrain_interval":             "engine.retrain_interval",
	"anomaly_contamination":        "engine.anomaly_contamination",
	"feature_history_size":         "engine.feature_history_size",
	"sentiment_probability":        "engine.sentiment_probability",
	"sentiment_penalty":            "engine.sentiment_penalty",
	"negative_sentiment_threshold": "engine.negative_sentiment_threshold",
	"points_normal":                "engine.points_normal",
	"points_low_risk":              "engine.points_low_risk",
	"low_risk_bonus":               "engine.low_risk_bonus",
	"low_risk_bonus_probability":   "engine.low_risk_bonus_probability",
	"classifier_timeout":           "engine.classifier_timeout",
	"engine_seed":                  "engine.seed",

	"tick_interval":       "scheduler.tick_interval",
	"decay_interval":      "scheduler.decay_interval",
	"decay_amount":        "scheduler.decay_amount",
	"decay_points":        "scheduler.decay_points",
	"scheduler_autostart": "scheduler.autostart",

	"storage_driver":      "storage.driver",
	"duckdb_path":         "storage.path",
	"breaker_failures":    "storage.breaker_failures",
	"breaker_timeout":     "storage.breaker_timeout",
	"storage_retry":       "storage.retry_initial",
	"storage_retry_max":   "storage.retry_max",
	"checkpoint_path":     "storage.checkpoint_path",
	"checkpoint_interval": "storage.checkpoint_interval",
	"checkpoint_retain":   "storage.checkpoint_retain",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"load_dir":            "server.load_dir",
	"load_allowed_hosts":  "server.load_allowed_hosts",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"webhook_url":           "notify.webhook.url",
	"webhook_rate_limit_ms": "notify.webhook.rate_limit_ms",
	"webhook_timeout":       "notify.webhook.timeout",
	"kafka_brokers":         "notify.kafka.brokers",
	"kafka_topic":           "notify.kafka.topic",
	"redis_addr":            "notify.redis.addr",
	"redis_password":        "notify.redis.password",
	"redis_db":              "notify.redis.db",
	"redis_channel":         "notify.redis.channel",

	"nats_enabled":       "ingest.nats.enabled",
	"nats_url":           "ingest.nats.url",
	"nats_subject":       "ingest.nats.subject",
	"nats_queue_group":   "ingest.nats.queue_group",
	"nats_durable_name":  "ingest.nats.durable",
	"nats_embedded":      "ingest.nats.embedded",
	"nats_embedded_port": "ingest.nats.embedded_port",
	"nats_store_dir":     "ingest.nats.store_dir",
	"inbox_dir":          "ingest.inbox.dir",
}

// envTransformFunc maps an environment variable name to its koanf path.
//
//	HTTP_PORT -> server.port
//	TICK_INTERVAL -> scheduler.tick_interval
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
