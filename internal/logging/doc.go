// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package logging provides zerolog-based structured logging for InsiderWatch.
//
// A single global logger is configured once from main and used everywhere
// through package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("user_id", "u1").Float64("risk", 21).Msg("Account locked")
//	logging.Ctx(ctx).Warn().Err(err).Msg("Replay failed")
//
// # Adapters
//
//   - NewSlogLogger bridges slog for sutureslog supervisor events.
//   - NewWatermillAdapter bridges watermill.LoggerAdapter for the NATS subscriber.
//
// # Audit
//
// AuditLogger records operator control actions (start, stop, pause, resume,
// reset, load_events) with the caller's address and request ID. Detail
// values pass through SanitizeValue before they are written.
package logging
