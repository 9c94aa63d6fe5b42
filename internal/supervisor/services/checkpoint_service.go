// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// RiskStates provides the current per-user risk table.
type RiskStates interface {
	Snapshot() []models.UserRiskState
}

// CheckpointSaver persists a risk table.
type CheckpointSaver interface {
	SaveRiskScores(ctx context.Context, ts time.Time, states []models.UserRiskState) error
}

// CheckpointService periodically writes risk checkpoints and writes a final
// one on shutdown.
type CheckpointService struct {
	states   RiskStates
	saver    CheckpointSaver
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	name     string
}

// NewCheckpointService creates the service. A non-positive interval uses 30s.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCheckpointService(states RiskStates, saver CheckpointSaver, interval time.Duration, logger zerolog.Logger) *CheckpointService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CheckpointService{
		states:   states,
		saver:    saver,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("service", "checkpoint").Logger(),
		name:     "checkpoint-service",
	}
}

// Serve implements suture.Service. Save failures are logged and retried on
// the next tick.
func (s *CheckpointService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("checkpoint service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final checkpoint outlives the canceled tree context.
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			s.save(finalCtx)
			cancel()
			s.logger.Info().Msg("checkpoint service stopped")
			return ctx.Err()

		case <-ticker.C:
			s.save(ctx)
		}
	}
}

func (s *CheckpointService) save(ctx context.Context) {
	states := s.states.Snapshot()
	if len(states) == 0 {
		return
	}
	if err := s.saver.SaveRiskScores(ctx, s.now(), states); err != nil {
		s.logger.Warn().Err(err).Int("users", len(states)).Msg("risk checkpoint failed")
		return
	}
	s.logger.Debug().Int("users", len(states)).Msg("risk checkpoint saved")
}

// String implements fmt.Stringer for suture logging.
func (s *CheckpointService) String() string {
	return s.name
}
