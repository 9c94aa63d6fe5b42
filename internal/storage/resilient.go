// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// ResilientConfig configures the storage circuit breaker.
type ResilientConfig struct {
	// Name labels the breaker in logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker.
	FailureThreshold uint32

	// Timeout is how long the breaker stays open before a trial call.
	Timeout time.Duration
}

// ResilientStore wraps a Store with a circuit breaker.
//
// DETERMINISM NOTE: gobreaker uses wall-clock time for its open timeout.
// Tests that need the breaker to recover should use a short Timeout.
type ResilientStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewResilientStore wraps inner.
func NewResilientStore(inner Store, cfg ResilientConfig) *ResilientStore {
	if cfg.Name == "" {
		cfg.Name = "storage"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(0)

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= threshold
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Str("breaker", cfg.Name).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		// A canceled caller says nothing about the backend.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &ResilientStore{inner: inner, cb: cb, name: cfg.Name}
}

// execute runs fn through the breaker and translates every failure into
// models.ErrStorageUnavailable.
func (r *ResilientStore) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := r.cb.Execute(fn)
	metrics.RecordStorageOp(op, time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
			counts := r.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(r.name).Set(float64(counts.ConsecutiveFailures))
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", models.ErrStorageUnavailable, op, err)
	}

	metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(r.name).Set(0)
	return result, nil
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// State returns the breaker state: "closed", "half-open" or "open".
func (r *ResilientStore) State() string {
	return stateToString(r.cb.State())
}

// Available reports whether the breaker is closed.
func (r *ResilientStore) Available() bool {
	return r.cb.State() == gobreaker.StateClosed
}

// AppendEvent implements EventStore.
func (r *ResilientStore) AppendEvent(ctx context.Context, ev *models.Event) error {
	_, err := r.execute("append_event", func() (interface{}, error) {
		return nil, r.inner.AppendEvent(ctx, ev)
	})
	return err
}

// AppendEvents implements EventStore.
func (r *ResilientStore) AppendEvents(ctx context.Context, evs []*models.Event) (int, error) {
	return castResult[int](r.execute("append_events", func() (interface{}, error) {
		return r.inner.AppendEvents(ctx, evs)
	}))
}

// NextUnprocessedEvent implements EventStore.
func (r *ResilientStore) NextUnprocessedEvent(ctx context.Context) (*models.Event, error) {
	return castResult[*models.Event](r.execute("next_event", func() (interface{}, error) {
		ev, err := r.inner.NextUnprocessedEvent(ctx)
		if ev == nil {
			return nil, err
		}
		return ev, err
	}))
}

// MarkProcessed implements EventStore.
func (r *ResilientStore) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.execute("mark_processed", func() (interface{}, error) {
		return nil, r.inner.MarkProcessed(ctx, id)
	})
	return err
}

// ListEvents implements EventStore.
func (r *ResilientStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return castResult[[]models.Event](r.execute("list_events", func() (interface{}, error) {
		return r.inner.ListEvents(ctx, limit)
	}))
}

// ClearProcessedEvents implements EventStore.
func (r *ResilientStore) ClearProcessedEvents(ctx context.Context) (int64, error) {
	return castResult[int64](r.execute("clear_processed", func() (interface{}, error) {
		return r.inner.ClearProcessedEvents(ctx)
	}))
}

// AppendIncident implements IncidentStore.
func (r *ResilientStore) AppendIncident(ctx context.Context, inc *models.Incident) error {
	_, err := r.execute("append_incident", func() (interface{}, error) {
		return nil, r.inner.AppendIncident(ctx, inc)
	})
	return err
}

// ListIncidents implements IncidentStore.
func (r *ResilientStore) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	return castResult[[]models.Incident](r.execute("list_incidents", func() (interface{}, error) {
		return r.inner.ListIncidents(ctx, limit)
	}))
}

// Counts implements Store.
func (r *ResilientStore) Counts(ctx context.Context) (models.Counts, error) {
	return castResult[models.Counts](r.execute("counts", func() (interface{}, error) {
		return r.inner.Counts(ctx)
	}))
}

// Ping implements Store. It goes through the breaker so a recovered backend
// closes it again.
func (r *ResilientStore) Ping(ctx context.Context) error {
	_, err := r.execute("ping", func() (interface{}, error) {
		return nil, r.inner.Ping(ctx)
	})
	return err
}

// Close closes the wrapped store.
func (r *ResilientStore) Close() error {
	return r.inner.Close()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
