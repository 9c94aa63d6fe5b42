// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

// SimulatorConfig configures a Simulator.
type SimulatorConfig struct {
	Users      []models.User
	Activities []string

	// Messages is the text pool for event details. Nil uses SimulatedMessages.
	Messages []string

	// Rand drives every random choice. Nil uses NewRand(0).
	Rand RandFunc

	// Now stamps events. Nil uses time.Now.
	Now func() time.Time
}

// Simulator is an infinite Source of random events.
type Simulator struct {
	users      []models.User
	activities []string
	messages   []string
	rnd        RandFunc
	now        func() time.Time
	store      storage.EventStore
}

// NewSimulator builds a Simulator. store may be nil, in which case Commit
// is a no-op.
func NewSimulator(cfg SimulatorConfig, store storage.EventStore) (*Simulator, error) {
	if len(cfg.Users) == 0 {
		return nil, models.ErrNoUsers
	}
	if len(cfg.Activities) == 0 {
		return nil, fmt.Errorf("simulator needs at least one activity")
	}
	if cfg.Messages == nil {
		cfg.Messages = SimulatedMessages
	}
	if cfg.Rand == nil {
		cfg.Rand = NewRand(0)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Simulator{
		users:      cfg.Users,
		activities: cfg.Activities,
		messages:   cfg.Messages,
		rnd:        cfg.Rand,
		now:        cfg.Now,
		store:      store,
	}, nil
}

// Next returns a new random event stamped now.
func (s *Simulator) Next(ctx context.Context) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	user := s.users[pick(s.rnd, len(s.users))]
	ev := &models.Event{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		UserID:    user.ID,
		Activity:  s.activities[pick(s.rnd, len(s.activities))],
		Source:    models.SourceSimulation,
	}
	if len(s.messages) > 0 {
		ev.Details = s.messages[pick(s.rnd, len(s.messages))]
	}
	return ev, nil
}

// Commit records the event in the activity log as already processed.
func (s *Simulator) Commit(ctx context.Context, ev *models.Event) error {
	if s.store == nil {
		return nil
	}
	rec := *ev
	rec.Processed = true
	if err := s.store.AppendEvent(ctx, &rec); err != nil {
		return fmt.Errorf("record simulated event: %w", err)
	}
	return nil
}
