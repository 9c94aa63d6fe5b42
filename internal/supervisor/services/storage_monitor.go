// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Pinger checks storage reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StorageMonitorConfig controls probe timing. While storage is down the
// delay doubles from RetryInitial up to RetryMax; while healthy it probes
// every RetryMax.
type StorageMonitorConfig struct {
	RetryInitial time.Duration
	RetryMax     time.Duration
	PingTimeout  time.Duration
}

// StorageMonitorService probes storage and logs availability transitions.
type StorageMonitorService struct {
	store  Pinger
	config StorageMonitorConfig
	logger zerolog.Logger
	name   string

	available bool
	delay     time.Duration
}

// NewStorageMonitorService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewStorageMonitorService(store Pinger, cfg StorageMonitorConfig, logger zerolog.Logger) *StorageMonitorService {
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = time.Second
	}
	if cfg.RetryMax < cfg.RetryInitial {
		cfg.RetryMax = cfg.RetryInitial
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}
	return &StorageMonitorService{
		store:     store,
		config:    cfg,
		logger:    logger.With().Str("service", "storage-monitor").Logger(),
		name:      "storage-monitor",
		available: true,
	}
}

// Serve implements suture.Service.
func (s *StorageMonitorService) Serve(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(s.probe(ctx))
		}
	}
}

// probe pings once and returns the delay before the next probe.
func (s *StorageMonitorService) probe(ctx context.Context) time.Duration {
	pingCtx, cancel := context.WithTimeout(ctx, s.config.PingTimeout)
	err := s.store.Ping(pingCtx)
	cancel()

	if err == nil {
		if !s.available {
			s.logger.Info().Msg("storage available again")
		}
		s.available = true
		s.delay = 0
		return s.config.RetryMax
	}

	if s.delay == 0 {
		s.delay = s.config.RetryInitial
	} else {
		s.delay = min(2*s.delay, s.config.RetryMax)
	}
	if s.available {
		s.logger.Warn().Err(err).Msg("storage unavailable")
	} else {
		s.logger.Debug().Err(err).Dur("retry_in", s.delay).Msg("storage still unavailable")
	}
	s.available = false
	return s.delay
}

// String implements fmt.Stringer for suture logging.
func (s *StorageMonitorService) String() string {
	return s.name
}
