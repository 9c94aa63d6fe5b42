// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package models

import "time"

// User is a monitored identity from the static roster.
// Role is descriptive only and carries no authority.
type User struct {
	ID   string `json:"id" koanf:"id" validate:"required,identifier,max=128"`
	Role string `json:"role" koanf:"role" validate:"max=64"`
}

// Status is the lock state of a user account.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusLocked Status = "LOCKED"
)

// RiskLevel buckets a risk score for display.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
	RiskLevelLocked RiskLevel = "locked"
)

// UserRiskState is the mutable ledger entry kept for every user.
//
// RiskScore is never negative. Status becomes LOCKED only as the result of an
// incident and returns to ACTIVE only once RiskScore is back at 0.
type UserRiskState struct {
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	RiskScore      float64   `json:"risk_score"`
	Status         Status    `json:"status"`
	SecurityScore  float64   `json:"security_score"`
	LastActivityAt time.Time `json:"last_activity_at"`
	Incidents      int       `json:"incidents"`
}

// NewUserRiskState returns the initial state for a user.
func NewUserRiskState(u User) UserRiskState {
	return UserRiskState{
		UserID: u.ID,
		Role:   u.Role,
		Status: StatusActive,
	}
}

// Locked reports whether the account is locked.
func (s *UserRiskState) Locked() bool {
	return s.Status == StatusLocked
}

// Level classifies the state against the low and medium thresholds.
func (s *UserRiskState) Level(low, medium float64) RiskLevel {
	switch {
	case s.Locked():
		return RiskLevelLocked
	case s.RiskScore <= low:
		return RiskLevelLow
	case s.RiskScore <= medium:
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}
