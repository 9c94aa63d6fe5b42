// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package models

import "time"

// SourceSimulation tags events synthesized by the simulator.
const SourceSimulation = "simulation"

// ActivityUnknown is used when an event names no recognizable activity.
const ActivityUnknown = "unknown"

// Event is a single user activity. Events are immutable once produced; the
// engine consumes each one exactly once.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id" validate:"required,identifier,max=128"`
	Activity  string    `json:"activity" validate:"required,max=64"`

	// RiskIncrease overrides the rule-derived delta when set.
	RiskIncrease *float64 `json:"risk_increase,omitempty" validate:"omitempty,gte=0,lte=1000"`

	Details   string `json:"details,omitempty" validate:"max=4096"`
	IPAddress string `json:"ip_address,omitempty" validate:"omitempty,ip"`
	FilePath  string `json:"file_path,omitempty" validate:"max=1024"`
	URL       string `json:"url,omitempty" validate:"omitempty,url"`
	Source    string `json:"source,omitempty" validate:"max=512"`

	Processed bool `json:"processed"`
}

// HasText reports whether the event carries free text for sentiment scoring.
func (e *Event) HasText() bool {
	return e.Details != ""
}

// Float returns a pointer to v. It is a convenience for RiskIncrease.
func Float(v float64) *float64 {
	return &v
}
