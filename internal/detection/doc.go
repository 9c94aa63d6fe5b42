// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package detection scores user activity and raises incidents.
//
// Detection Architecture:
//
//	Event -> Engine.Process -> UserRiskState -> Incident -> Notifiers
//	           |                                   |
//	           v                                   v
//	  rules + anomaly + sentiment        WebSocket/Webhook/Kafka/Redis
//
// Each tick pulls at most one event from a Source and runs it through a fixed
// pipeline inside a single state.Store critical section:
//
//  1. Validation: unknown users are rejected. Events for locked users are
//     recorded but add no risk.
//  2. Rule scoring: the event's risk_increase if set, otherwise the rule
//     value for its activity.
//  3. State mutation and feature sampling.
//  4. Anomaly check, with periodic retraining of the classifier.
//  5. Sentiment check on the event text.
//  6. Security points for low-risk behavior.
//  7. Incident check: at or above the threshold the account is locked and
//     its risk reset to 0.
//
// Classifier calls are bounded by a timeout and degrade to a neutral result.
// Storage writes and notifications happen after the critical section, so a
// slow backend never holds the state lock.
//
// Decay runs on its own schedule through Engine.Decay and lowers every
// user's risk by a fixed amount, unlocking accounts that reach 0.
package detection
