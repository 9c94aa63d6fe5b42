// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package validation wraps go-playground/validator v10 with a shared
// instance, JSON field naming and readable messages.
//
// Events, user rosters and API request bodies carry `validate` tags and are
// checked with ValidateStruct before they reach the engine or storage.
// The custom "identifier" tag rejects IDs containing whitespace or control
// characters.
package validation
