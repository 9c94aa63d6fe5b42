// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// OpenFunc opens a backend store.
type OpenFunc func(ctx context.Context) (Store, error)

// ReconnectingStore opens its backend on first use and retries the open on
// every call until it succeeds. Calls made while the backend is missing fail
// with models.ErrStorageUnavailable. It sits below a ResilientStore, so the
// breaker limits how often an unreachable backend is retried.
type ReconnectingStore struct {
	open OpenFunc

	mu      sync.Mutex
	inner   Store
	lastErr error
	closed  bool
}

// NewReconnectingStore wraps open. The first connection attempt happens on the
// first call.
func NewReconnectingStore(open OpenFunc) *ReconnectingStore {
	return &ReconnectingStore{open: open}
}

// Connected reports whether the backend is open.
func (s *ReconnectingStore) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner != nil
}

func (s *ReconnectingStore) get(ctx context.Context) (Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStoreClosed
	}
	if s.inner != nil {
		return s.inner, nil
	}

	inner, err := s.open(ctx)
	if err != nil {
		s.lastErr = err
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}
	if s.lastErr != nil {
		logging.Info().Msg("Storage backend connected after earlier failure")
	}
	s.inner, s.lastErr = inner, nil
	return inner, nil
}

// AppendEvent implements EventStore.
func (s *ReconnectingStore) AppendEvent(ctx context.Context, ev *models.Event) error {
	inner, err := s.get(ctx)
	if err != nil {
		return err
	}
	return inner.AppendEvent(ctx, ev)
}

// AppendEvents implements EventStore.
func (s *ReconnectingStore) AppendEvents(ctx context.Context, evs []*models.Event) (int, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return 0, err
	}
	return inner.AppendEvents(ctx, evs)
}

// NextUnprocessedEvent implements EventStore.
func (s *ReconnectingStore) NextUnprocessedEvent(ctx context.Context) (*models.Event, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return inner.NextUnprocessedEvent(ctx)
}

// MarkProcessed implements EventStore.
func (s *ReconnectingStore) MarkProcessed(ctx context.Context, id string) error {
	inner, err := s.get(ctx)
	if err != nil {
		return err
	}
	return inner.MarkProcessed(ctx, id)
}

// ListEvents implements EventStore.
func (s *ReconnectingStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return inner.ListEvents(ctx, limit)
}

// ClearProcessedEvents implements EventStore.
func (s *ReconnectingStore) ClearProcessedEvents(ctx context.Context) (int64, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return 0, err
	}
	return inner.ClearProcessedEvents(ctx)
}

// AppendIncident implements IncidentStore.
func (s *ReconnectingStore) AppendIncident(ctx context.Context, inc *models.Incident) error {
	inner, err := s.get(ctx)
	if err != nil {
		return err
	}
	return inner.AppendIncident(ctx, inc)
}

// ListIncidents implements IncidentStore.
func (s *ReconnectingStore) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	return inner.ListIncidents(ctx, limit)
}

// Counts implements Store.
func (s *ReconnectingStore) Counts(ctx context.Context) (models.Counts, error) {
	inner, err := s.get(ctx)
	if err != nil {
		return models.Counts{}, err
	}
	return inner.Counts(ctx)
}

// Ping implements Store. A missing backend is opened here, which is how the
// storage monitor brings it up.
func (s *ReconnectingStore) Ping(ctx context.Context) error {
	inner, err := s.get(ctx)
	if err != nil {
		return err
	}
	return inner.Ping(ctx)
}

// Close closes the backend if it was opened. Later calls fail.
func (s *ReconnectingStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.inner == nil {
		return nil
	}
	return s.inner.Close()
}
