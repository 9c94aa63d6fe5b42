// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// ErrNATSServerStopped is returned when the embedded server exits on its own.
var ErrNATSServerStopped = errors.New("embedded NATS server stopped unexpectedly")

// NATSServer is the lifecycle part of *ingest.EmbeddedServer.
type NATSServer interface {
	Shutdown(ctx context.Context) error
	IsRunning() bool
}

// EmbeddedNATSService ties an already started embedded server to the data
// layer. The server is shut down when the tree stops.
type EmbeddedNATSService struct {
	server          NATSServer
	checkInterval   time.Duration
	shutdownTimeout time.Duration
	logger          zerolog.Logger
	name            string
}

// NewEmbeddedNATSService wraps server.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEmbeddedNATSService(server NATSServer, logger zerolog.Logger) *EmbeddedNATSService {
	return &EmbeddedNATSService{
		server:          server,
		checkInterval:   5 * time.Second,
		shutdownTimeout: 10 * time.Second,
		logger:          logger.With().Str("service", "nats-server").Logger(),
		name:            "nats-server",
	}
}

// Serve implements suture.Service. It polls IsRunning so a server that dies
// is reported to the supervisor instead of silently stalling ingestion.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Err(err).Msg("embedded NATS shutdown did not complete")
			} else {
				s.logger.Info().Msg("embedded NATS server stopped")
			}
			return ctx.Err()

		case <-ticker.C:
			if !s.server.IsRunning() {
				s.logger.Error().Msg("embedded NATS server is no longer running")
				return ErrNATSServerStopped
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
