// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/metrics"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

// FallbackConfig configures the storage retry schedule.
type FallbackConfig struct {
	RetryInitial time.Duration
	RetryMax     time.Duration

	// Now is the clock used for retry deadlines. Nil uses time.Now.
	Now func() time.Time
}

// Fallback serves replay events while replay mode is on and simulated events
// otherwise. It is the Source handed to the engine.
type Fallback struct {
	replay *Replay
	sim    *Simulator
	store  storage.EventStore
	cfg    FallbackConfig

	mu       sync.Mutex
	replayOn bool
	mode     string

	// Storage outage tracking. While degraded, replay is retried no earlier
	// than retryAt.
	degraded  bool
	backoff   time.Duration
	retryAt   time.Time
	outageLog rate.Sometimes

	// Producer of every event handed out and not yet committed.
	pending map[string]Source

	// Replay events that were handed out but failed to commit. They are
	// committed again before replay resumes and never handed out twice.
	uncommitted map[string]*models.Event
}

// NewFallback composes replay over store with sim. It starts in simulation
// mode; call SwitchToReplay or Load to turn replay on.
func NewFallback(store storage.EventStore, sim *Simulator, cfg FallbackConfig) *Fallback {
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = time.Second
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = cfg.RetryInitial
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	f := &Fallback{
		replay:    NewReplay(store),
		sim:       sim,
		store:     store,
		cfg:       cfg,
		mode:      ModeSimulation,
		outageLog: rate.Sometimes{First: 1},
		pending:   make(map[string]Source),

		uncommitted: make(map[string]*models.Event),
	}
	metrics.SetSourceMode(ModeSimulation)
	return f
}

// Mode returns the mode that produced the most recent event.
func (f *Fallback) Mode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// ReplayEnabled reports whether replay mode is requested.
func (f *Fallback) ReplayEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replayOn
}

// Degraded reports whether storage is currently considered unavailable.
func (f *Fallback) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

// SwitchToReplay turns replay mode on and retries storage immediately.
func (f *Fallback) SwitchToReplay() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayOn = true
	f.retryAt = time.Time{}
	logging.Info().Msg("Event source switched to replay")
}

// SwitchToSimulation turns replay mode off.
func (f *Fallback) SwitchToSimulation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replayOn = false
	f.setModeLocked(ModeSimulation)
}

// Load appends evs to the replay queue and switches to replay mode.
func (f *Fallback) Load(ctx context.Context, evs []*models.Event) (int, error) {
	n, err := f.store.AppendEvents(ctx, evs)
	if err != nil {
		return 0, fmt.Errorf("queue loaded events: %w", err)
	}
	f.SwitchToReplay()
	return n, nil
}

// Next implements Source.
func (f *Fallback) Next(ctx context.Context) (*models.Event, error) {
	if f.shouldTryReplay() {
		ev, err := f.nextReplay(ctx)
		switch {
		case err == nil:
			f.handOut(ev, f.replay, ModeReplay)
			return ev, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, models.ErrSourceExhausted):
			f.exhausted()
		default:
			f.outage(err)
		}
	}

	ev, err := f.sim.Next(ctx)
	if err != nil {
		return nil, err
	}
	f.handOut(ev, f.sim, ModeSimulation)
	return ev, nil
}

// Commit implements Source by delegating to whichever source produced ev.
func (f *Fallback) Commit(ctx context.Context, ev *models.Event) error {
	f.mu.Lock()
	src, ok := f.pending[ev.ID]
	delete(f.pending, ev.ID)
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("event %s was not produced by this source", ev.ID)
	}
	err := src.Commit(ctx, ev)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case err != nil:
		if _, ok := src.(*Replay); ok {
			f.uncommitted[ev.ID] = ev
		}
		f.outageLocked(err)
	case f.degraded:
		f.recoveredLocked()
	}
	return err
}

// Uncommitted returns the number of replayed events still waiting for a
// successful commit.
func (f *Fallback) Uncommitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uncommitted)
}

// nextReplay commits any replayed events left over from a failed commit and
// then reads the replay queue. It never returns an event that was already
// handed out.
func (f *Fallback) nextReplay(ctx context.Context) (*models.Event, error) {
	if err := f.flushUncommitted(ctx); err != nil {
		return nil, err
	}
	ev, err := f.replay.Next(ctx)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	_, seen := f.uncommitted[ev.ID]
	f.mu.Unlock()
	if seen {
		return nil, fmt.Errorf("replay returned uncommitted event %s: %w", ev.ID, models.ErrStorageUnavailable)
	}
	return ev, nil
}

func (f *Fallback) flushUncommitted(ctx context.Context) error {
	f.mu.Lock()
	evs := make([]*models.Event, 0, len(f.uncommitted))
	for _, ev := range f.uncommitted {
		evs = append(evs, ev)
	}
	f.mu.Unlock()

	for _, ev := range evs {
		if err := f.replay.Commit(ctx, ev); err != nil {
			return err
		}
		f.mu.Lock()
		delete(f.uncommitted, ev.ID)
		f.mu.Unlock()
		logging.Info().Str("event_id", ev.ID).Msg("Replayed event committed after retry")
	}
	return nil
}

func (f *Fallback) shouldTryReplay() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.replayOn {
		return false
	}
	return !f.degraded || !f.cfg.Now().Before(f.retryAt)
}

func (f *Fallback) handOut(ev *models.Event, src Source, mode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[ev.ID] = src
	if mode == ModeReplay && f.degraded {
		f.recoveredLocked()
	}
	f.setModeLocked(mode)
}

func (f *Fallback) exhausted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		f.recoveredLocked()
	}
	f.replayOn = false
	logging.Info().Msg("Replay queue exhausted, falling back to simulation")
}

func (f *Fallback) outage(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outageLocked(err)
}

// outageLocked marks storage degraded and schedules the next replay attempt.
func (f *Fallback) outageLocked(err error) {
	if f.backoff == 0 {
		f.backoff = f.cfg.RetryInitial
	} else {
		f.backoff = min(2*f.backoff, f.cfg.RetryMax)
	}
	f.retryAt = f.cfg.Now().Add(f.backoff)
	f.degraded = true
	f.logOutageLocked(err)
}

// logOutageLocked logs the first failure of each outage only.
func (f *Fallback) logOutageLocked(err error) {
	f.degraded = true
	f.outageLog.Do(func() {
		logging.Warn().Err(err).Msg("Storage unavailable, falling back to simulation")
	})
}

func (f *Fallback) recoveredLocked() {
	logging.Info().Msg("Storage recovered")
	f.degraded = false
	f.backoff = 0
	f.retryAt = time.Time{}
	f.outageLog = rate.Sometimes{First: 1}
}

func (f *Fallback) setModeLocked(mode string) {
	if f.mode == mode {
		return
	}
	logging.Info().Str("from", f.mode).Str("to", mode).Msg("Event source mode changed")
	f.mode = mode
	metrics.SetSourceMode(mode)
}
