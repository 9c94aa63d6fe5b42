// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"sync"

	"github.com/tomtom215/insiderwatch/internal/models"
)

type memoryEvent struct {
	seq int64
	ev  models.Event
}

// MemoryStore is a process-local Store. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	events    []memoryEvent
	incidents []models.Incident
	closed    bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendEvent stores a copy of ev.
func (m *MemoryStore) AppendEvent(ctx context.Context, ev *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	m.appendLocked(ev)
	return nil
}

// AppendEvents stores every event in evs.
func (m *MemoryStore) AppendEvents(ctx context.Context, evs []*models.Event) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errStoreClosed
	}
	for _, ev := range evs {
		m.appendLocked(ev)
	}
	return len(evs), nil
}

func (m *MemoryStore) appendLocked(ev *models.Event) {
	prepareEvent(ev)
	m.seq++
	stored := *ev
	if ev.RiskIncrease != nil {
		stored.RiskIncrease = models.Float(*ev.RiskIncrease)
	}
	m.events = append(m.events, memoryEvent{seq: m.seq, ev: stored})
}

// NextUnprocessedEvent returns the oldest unprocessed event or nil.
func (m *MemoryStore) NextUnprocessedEvent(ctx context.Context) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	best := -1
	for i := range m.events {
		e := &m.events[i]
		if e.ev.Processed {
			continue
		}
		if best < 0 || before(e, &m.events[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}
	out := m.events[best].ev
	return &out, nil
}

func before(a, b *memoryEvent) bool {
	if a.ev.Timestamp.Equal(b.ev.Timestamp) {
		return a.seq < b.seq
	}
	return a.ev.Timestamp.Before(b.ev.Timestamp)
}

// MarkProcessed flags the event with id as consumed.
func (m *MemoryStore) MarkProcessed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	for i := range m.events {
		if m.events[i].ev.ID == id {
			m.events[i].ev.Processed = true
		}
	}
	return nil
}

// ListEvents returns up to limit events, newest first.
func (m *MemoryStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	sorted := make([]*memoryEvent, len(m.events))
	for i := range m.events {
		sorted[i] = &m.events[i]
	}
	sortNewestFirst(sorted)

	limit = normalizeLimit(limit)
	out := make([]models.Event, 0, min(limit, len(sorted)))
	for _, e := range sorted {
		if len(out) == limit {
			break
		}
		out = append(out, e.ev)
	}
	return out, nil
}

// sortNewestFirst is an insertion sort; the log is appended mostly in
// timestamp order so it is close to linear in practice.
func sortNewestFirst(evs []*memoryEvent) {
	for i := 1; i < len(evs); i++ {
		for j := i; j > 0 && before(evs[j-1], evs[j]); j-- {
			evs[j-1], evs[j] = evs[j], evs[j-1]
		}
	}
}

// ClearProcessedEvents drops consumed events.
func (m *MemoryStore) ClearProcessedEvents(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errStoreClosed
	}

	kept := m.events[:0]
	var removed int64
	for _, e := range m.events {
		if e.ev.Processed {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return removed, nil
}

// AppendIncident stores a copy of inc.
func (m *MemoryStore) AppendIncident(ctx context.Context, inc *models.Incident) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errStoreClosed
	}
	prepareIncident(inc)
	m.incidents = append(m.incidents, *inc)
	return nil
}

// ListIncidents returns up to limit incidents, newest first.
func (m *MemoryStore) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, errStoreClosed
	}

	limit = normalizeLimit(limit)
	out := make([]models.Incident, 0, min(limit, len(m.incidents)))
	// Incidents are appended in trigger order.
	for i := len(m.incidents) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.incidents[i])
	}
	return out, nil
}

// Counts returns event and incident totals.
func (m *MemoryStore) Counts(ctx context.Context) (models.Counts, error) {
	if err := ctx.Err(); err != nil {
		return models.Counts{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return models.Counts{}, errStoreClosed
	}

	c := models.Counts{
		Events:    int64(len(m.events)),
		Incidents: int64(len(m.incidents)),
	}
	for i := range m.events {
		if !m.events[i].ev.Processed {
			c.UnprocessedEvents++
		}
	}
	return c, nil
}

// Ping fails only after Close.
func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return errStoreClosed
	}
	return ctx.Err()
}

// Close marks the store closed. Later calls fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
