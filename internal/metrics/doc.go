// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package metrics exposes Prometheus instrumentation for InsiderWatch.

All collectors are registered on the default registry through promauto and
served at /metrics. Every name carries the insiderwatch_ prefix.

# Engine

  - insiderwatch_ticks_total{result}: processed, rejected, idle, error
  - insiderwatch_tick_duration_seconds
  - insiderwatch_incidents_total{alert_type}: RULE_BASED, AI_ANOMALY
  - insiderwatch_anomalies_total, insiderwatch_sentiment_penalties_total
  - insiderwatch_retrains_total{result}
  - insiderwatch_decay_cycles_total
  - insiderwatch_user_risk_score{user_id}, insiderwatch_users_locked
  - insiderwatch_source_mode{mode}: one-hot replay/simulation

# Infrastructure

  - insiderwatch_storage_query_duration_seconds{operation}
  - insiderwatch_storage_errors_total{operation}
  - insiderwatch_circuit_breaker_* for the storage breaker
  - insiderwatch_notifier_errors_total{notifier}
  - insiderwatch_ingest_messages_total{transport,result}
  - insiderwatch_api_request_duration_seconds{method,route,status}
  - insiderwatch_websocket_clients
*/
package metrics
