// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/insiderwatch/internal/config"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
)

var errStoreClosed = errors.New("store closed")

// DefaultListLimit is used when a list call passes a limit <= 0.
const DefaultListLimit = 100

// EventStore is the activity log and the replay queue.
type EventStore interface {
	// AppendEvent stores ev. An empty ID is replaced with a new UUID and a
	// zero Timestamp with the current time.
	AppendEvent(ctx context.Context, ev *models.Event) error

	// AppendEvents stores a batch atomically and returns how many were stored.
	AppendEvents(ctx context.Context, evs []*models.Event) (int, error)

	// NextUnprocessedEvent returns the oldest unprocessed event, or nil when
	// the queue is empty.
	NextUnprocessedEvent(ctx context.Context) (*models.Event, error)

	// MarkProcessed flags an event as consumed. Unknown IDs are not an error.
	MarkProcessed(ctx context.Context, id string) error

	// ListEvents returns the newest events first.
	ListEvents(ctx context.Context, limit int) ([]models.Event, error)

	// ClearProcessedEvents deletes consumed events and returns the count removed.
	ClearProcessedEvents(ctx context.Context) (int64, error)
}

// IncidentStore is the append-only incident log.
type IncidentStore interface {
	// AppendIncident stores inc, assigning an ID when empty.
	AppendIncident(ctx context.Context, inc *models.Incident) error

	// ListIncidents returns the newest incidents first.
	ListIncidents(ctx context.Context, limit int) ([]models.Incident, error)
}

// Store is the full storage collaborator used by the engine and the API.
type Store interface {
	EventStore
	IncidentStore

	Counts(ctx context.Context) (models.Counts, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Driver and wraps it in a
// ResilientStore. A database that cannot be opened is not fatal: the
// returned store reports models.ErrStorageUnavailable and keeps retrying the
// open until it succeeds. Only an unknown driver is an error.
func Open(ctx context.Context, cfg *config.StorageConfig) (*ResilientStore, error) {
	var inner Store
	switch cfg.Driver {
	case "memory":
		inner = NewMemoryStore()
	case "duckdb", "":
		path := cfg.Path
		db, err := OpenDuckDB(ctx, path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).
				Msg("Storage unavailable at startup, will keep retrying")
			return newResilientFromConfig(NewReconnectingStore(func(ctx context.Context) (Store, error) {
				return OpenDuckDB(ctx, path)
			}), cfg), nil
		}
		inner = db
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	logging.Info().Str("driver", cfg.Driver).Str("path", cfg.Path).Msg("Storage opened")
	return newResilientFromConfig(inner, cfg), nil
}

func newResilientFromConfig(inner Store, cfg *config.StorageConfig) *ResilientStore {
	return NewResilientStore(inner, ResilientConfig{
		Name:             "storage",
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
	})
}

// prepareEvent fills in the ID and timestamp before insertion.
func prepareEvent(ev *models.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
}

func prepareIncident(inc *models.Incident) {
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}
	if inc.Timestamp.IsZero() {
		inc.Timestamp = time.Now().UTC()
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

// closeQuietly closes c and logs any error. For use in cleanup paths where
// the error cannot be returned.
func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Str("resource", what).Msg("Close failed")
	}
}
