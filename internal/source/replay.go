// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"context"
	"fmt"

	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

// Replay serves the storage replay queue in chronological order.
type Replay struct {
	store storage.EventStore
}

// NewReplay reads from store.
func NewReplay(store storage.EventStore) *Replay {
	return &Replay{store: store}
}

// Next returns the oldest unprocessed event. The same event is returned
// until it is committed.
func (r *Replay) Next(ctx context.Context) (*models.Event, error) {
	ev, err := r.store.NextUnprocessedEvent(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if ev == nil {
		return nil, models.ErrSourceExhausted
	}
	return ev, nil
}

// Commit marks the event processed.
func (r *Replay) Commit(ctx context.Context, ev *models.Event) error {
	if err := r.store.MarkProcessed(ctx, ev.ID); err != nil {
		return fmt.Errorf("replay commit %s: %w", ev.ID, err)
	}
	return nil
}
