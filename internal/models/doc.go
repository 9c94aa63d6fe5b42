// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package models defines the data types shared by every InsiderWatch package:
// users and their risk state, activity events, incidents, the error taxonomy
// and the HTTP response envelope.
package models
