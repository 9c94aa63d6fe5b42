// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "insiderwatch"

// Tick results.
const (
	TickProcessed = "processed"
	TickRejected  = "rejected"
	TickIdle      = "idle"
	TickError     = "error"
)

// Source modes reported by SourceMode.
var sourceModes = []string{"replay", "simulation"}

var (
	// Engine Metrics
	TicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of engine ticks by result",
		},
		[]string{"result"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of one engine tick in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)

	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_total",
			Help:      "Total number of security incidents by alert type",
		},
		[]string{"alert_type"},
	)

	AnomaliesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Total number of events flagged anomalous by the classifier",
		},
	)

	SentimentPenaltiesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentiment_penalties_total",
			Help:      "Total number of negative-sentiment risk penalties applied",
		},
	)

	RetrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrains_total",
			Help:      "Total number of anomaly model retrains by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	DecayCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_cycles_total",
			Help:      "Total number of risk decay cycles",
		},
	)

	UserRiskScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "user_risk_score",
			Help:      "Current risk score per user",
		},
		[]string{"user_id"},
	)

	UsersLocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_locked",
			Help:      "Current number of locked accounts",
		},
	)

	SourceMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "source_mode",
			Help:      "Active event source (1 for the current mode)",
		},
		[]string{"mode"},
	)

	// Storage Metrics
	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_query_duration_seconds",
			Help:      "Duration of storage operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Total number of failed storage operations",
		},
		[]string{"operation"},
	)

	CheckpointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoints_total",
			Help:      "Total number of risk checkpoints written",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of incident notifications delivered",
		},
		[]string{"notifier"},
	)

	NotifierErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_errors_total",
			Help:      "Total number of failed incident notifications",
		},
		[]string{"notifier"},
	)

	// Ingest Metrics
	IngestMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_messages_total",
			Help:      "Total number of inbound event messages by result",
		},
		[]string{"transport", "result"}, // transport: "nats", "inbox"; result: "stored", "invalid", "failed"
	)

	// API Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route", "status"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limit_hits_total",
			Help:      "Total number of rate limit rejections",
		},
		[]string{"route"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Current number of connected WebSocket clients",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_messages_sent_total",
			Help:      "Total number of WebSocket messages broadcast",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_requests_total",
			Help:      "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_consecutive_failures",
			Help:      "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "app_info",
			Help:      "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordTick records the outcome and duration of one tick.
func RecordTick(result string, duration time.Duration) {
	TicksTotal.WithLabelValues(result).Inc()
	TickDuration.Observe(duration.Seconds())
}

// RecordIncident counts an incident of the given alert type.
func RecordIncident(alertType string) {
	IncidentsTotal.WithLabelValues(alertType).Inc()
}

// RecordRetrain counts a retrain attempt.
func RecordRetrain(err error) {
	if err != nil {
		RetrainsTotal.WithLabelValues("failure").Inc()
		return
	}
	RetrainsTotal.WithLabelValues("success").Inc()
}

// RecordUserRisk publishes the per-user gauges after a mutation.
func RecordUserRisk(scores map[string]float64, locked int) {
	for userID, score := range scores {
		UserRiskScore.WithLabelValues(userID).Set(score)
	}
	UsersLocked.Set(float64(locked))
}

// SetSourceMode marks mode as active and every other mode inactive.
func SetSourceMode(mode string) {
	for _, m := range sourceModes {
		v := 0.0
		if m == mode {
			v = 1
		}
		SourceMode.WithLabelValues(m).Set(v)
	}
}

// RecordStorageOp records a storage call. Failed calls also count as errors.
func RecordStorageOp(operation string, duration time.Duration, err error) {
	StorageQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(operation).Inc()
	}
}

// RecordNotification records one notifier delivery attempt.
func RecordNotification(notifier string, err error) {
	if err != nil {
		NotifierErrors.WithLabelValues(notifier).Inc()
		return
	}
	NotificationsSent.WithLabelValues(notifier).Inc()
}

// RecordIngest records one inbound message.
func RecordIngest(transport, result string) {
	IngestMessagesConsumed.WithLabelValues(transport, result).Inc()
}

// RecordAPIRequest records an API request by chi route pattern.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}
