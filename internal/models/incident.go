// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package models

import "time"

// AlertType records which detector caused an incident.
type AlertType string

const (
	AlertTypeRuleBased AlertType = "RULE_BASED"
	AlertTypeAIAnomaly AlertType = "AI_ANOMALY"
)

// Incident is an immutable record of a threshold crossing. RiskScore is the
// value at trigger time, before the post-incident reset.
type Incident struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	RiskScore float64   `json:"risk_score"`
	Message   string    `json:"message"`
	AlertType AlertType `json:"alert_type"`
	EventID   string    `json:"event_id,omitempty"`
}

// Counts summarizes persisted records.
type Counts struct {
	Events            int64 `json:"events"`
	UnprocessedEvents int64 `json:"unprocessed_events"`
	Incidents         int64 `json:"incidents"`
}

// RiskCheckpoint is a point-in-time copy of every user's risk score.
type RiskCheckpoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Scores    map[string]float64 `json:"scores"`
	States    []UserRiskState    `json:"states,omitempty"`
}
