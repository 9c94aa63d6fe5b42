// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

/*
Package storage persists events, incidents and risk-score checkpoints.

# Backends

Two implementations satisfy Store:

  - DuckDBStore: the production backend. Events and incidents live in two
    tables in a single DuckDB file (or ":memory:" for tests).
  - MemoryStore: a slice-backed store used when storage.driver is "memory"
    and by tests that do not need SQL.

Both order the replay queue by event timestamp and then by insertion order,
so two events with the same timestamp are replayed in the order they were
appended.

# Resilience

ResilientStore wraps any Store with a sony/gobreaker circuit breaker. Every
failure it returns, including a rejected call while the breaker is open,
wraps models.ErrStorageUnavailable so callers can test for it with errors.Is
and fall back to simulation.

# Checkpoints

CheckpointStore keeps periodic copies of every user's risk state in BadgerDB.
The newest checkpoint is restored at startup. Older entries beyond the
retention count are pruned on each save.

# Export

WriteIncidentsCSV and WriteEventsCSV render the incident log and the activity
log for the export endpoints.
*/
package storage
