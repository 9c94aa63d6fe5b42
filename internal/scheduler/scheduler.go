// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/insiderwatch/internal/config"
	"github.com/tomtom215/insiderwatch/internal/detection"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// Engine is the part of detection.Engine the scheduler drives.
type Engine interface {
	Tick(ctx context.Context) (*detection.TickResult, error)
	Decay(ctx context.Context) detection.DecayResult
	Announce(action, detail string)
}

// Config holds the loop intervals.
type Config struct {
	TickInterval  time.Duration
	DecayInterval time.Duration
	Autostart     bool
}

// FromSettings converts the scheduler configuration section.
func FromSettings(c config.SchedulerConfig) Config {
	return Config{
		TickInterval:  c.TickInterval,
		DecayInterval: c.DecayInterval,
		Autostart:     c.Autostart,
	}
}

// State reports whether the loops are running and whether ticks are paused.
type State struct {
	Running bool `json:"running"`
	Paused  bool `json:"paused"`
}

// Scheduler runs the tick and decay loops.
type Scheduler struct {
	engine Engine
	cfg    Config

	mu       sync.Mutex
	running  bool
	paused   bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a stopped scheduler. Non-positive intervals fall back to the
// defaults of 1.2s for ticks and 5s for decay.
func New(engine Engine, cfg Config) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 1200 * time.Millisecond
	}
	if cfg.DecayInterval <= 0 {
		cfg.DecayInterval = 5 * time.Second
	}
	return &Scheduler{engine: engine, cfg: cfg}
}

// String implements fmt.Stringer for suture.
func (s *Scheduler) String() string {
	return "detection-scheduler"
}

// Start launches both loops. It returns false if they were already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.running = true
	s.paused = false
	s.stopChan = make(chan struct{})
	stop := s.stopChan

	s.wg.Add(2)
	go s.tickLoop(stop)
	go s.decayLoop(stop)
	s.mu.Unlock()

	logging.Info().
		Dur("tick_interval", s.cfg.TickInterval).
		Dur("decay_interval", s.cfg.DecayInterval).
		Msg("Monitoring started")
	s.engine.Announce(string(logging.ActionStart), "")
	return true
}

// Stop halts both loops and waits for any in-flight tick or decay. It
// returns false if the scheduler was not running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.running = false
	s.paused = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()

	logging.Info().Msg("Monitoring stopped")
	s.engine.Announce(string(logging.ActionStop), "")
	return true
}

// Pause suspends the tick loop. Decay keeps running.
func (s *Scheduler) Pause() error {
	return s.setPaused(true)
}

// Resume restarts a paused tick loop.
func (s *Scheduler) Resume() error {
	return s.setPaused(false)
}

func (s *Scheduler) setPaused(paused bool) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return models.ErrEngineStopped
	}
	changed := s.paused != paused
	s.paused = paused
	s.mu.Unlock()

	if !changed {
		return nil
	}
	action := logging.ActionResume
	if paused {
		action = logging.ActionPause
	}
	logging.Info().Str("action", string(action)).Msg("Monitoring state changed")
	s.engine.Announce(string(action), "")
	return nil
}

// State returns the current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Running: s.running, Paused: s.paused}
}

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.cfg.Autostart {
		s.Start()
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *Scheduler) tickLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.isPaused() {
				continue
			}
			if _, err := s.engine.Tick(context.Background()); err != nil {
				var verr *models.ValidationError
				if !errors.As(err, &verr) {
					logging.Error().Err(err).Msg("Tick failed")
				}
			}
		}
	}
}

func (s *Scheduler) decayLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			res := s.engine.Decay(context.Background())
			if len(res.Unlocked) > 0 {
				logging.Debug().Strs("users", res.Unlocked).Msg("Decay unlocked users")
			}
		}
	}
}
