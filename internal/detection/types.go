// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// Broadcast message types.
const (
	MessageIncident = "incident"
	MessageAnomaly  = "anomaly"
	MessageSnapshot = "snapshot"
	MessageControl  = "control"
)

// Source supplies events to the engine. Next returns (nil, nil) when no
// event is available this tick. Commit marks an event as consumed.
type Source interface {
	Next(ctx context.Context) (*models.Event, error)
	Commit(ctx context.Context, ev *models.Event) error
}

// ReplayLoader is implemented by sources that accept externally loaded
// events and switch to replay mode.
type ReplayLoader interface {
	Load(ctx context.Context, evs []*models.Event) (int, error)
}

// ModeReporter is implemented by sources that know which mode produced the
// latest event.
type ModeReporter interface {
	Mode() string
}

// IncidentStore persists incidents.
type IncidentStore interface {
	AppendIncident(ctx context.Context, inc *models.Incident) error
}

// Notifier delivers incidents to an external system.
type Notifier interface {
	// Send delivers the incident.
	Send(ctx context.Context, inc *models.Incident) error

	// Name returns the notifier identifier.
	Name() string

	// Enabled returns whether this notifier is active.
	Enabled() bool
}

// Broadcaster pushes messages to connected dashboard clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// TickResult describes what one tick did.
type TickResult struct {
	// Event is nil for an idle tick.
	Event *models.Event `json:"event,omitempty"`

	// Delta is the base risk delta before any penalties.
	Delta float64 `json:"delta"`

	// Locked is true when the event was recorded for a locked user and
	// contributed nothing.
	Locked bool `json:"locked"`

	Anomaly   bool `json:"anomaly"`
	Sentiment bool `json:"sentiment_penalty"`
	Retrained bool `json:"retrained"`

	// Incident is set when the tick crossed the threshold.
	Incident *models.Incident `json:"incident,omitempty"`

	// State is the user's state after the tick.
	State *models.UserRiskState `json:"state,omitempty"`
}

// AnomalyNotice is broadcast when the anomaly model flags a user without the
// penalty crossing the incident threshold.
type AnomalyNotice struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Penalty   float64   `json:"penalty"`
	RiskScore float64   `json:"risk_score"`
	Message   string    `json:"message"`
}

// ControlNotice is broadcast on engine lifecycle changes.
type ControlNotice struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// UserView is a user's state plus its display risk level.
type UserView struct {
	models.UserRiskState
	Level models.RiskLevel `json:"risk_level"`
}

// Snapshot is the consistent state pushed to dashboards after each
// mutation.
type Snapshot struct {
	Timestamp time.Time  `json:"timestamp"`
	Users     []UserView `json:"users"`
	Stats     Stats      `json:"stats"`
}

// Stats summarizes engine activity since start or the last reset.
type Stats struct {
	TotalActivities int64   `json:"total_activities"`
	RejectedEvents  int64   `json:"rejected_events"`
	AverageRisk     float64 `json:"average_risk"`
	MaxRisk         float64 `json:"max_risk"`
	HighRiskUsers   int     `json:"high_risk_users"`
	LockedUsers     int     `json:"locked_users"`
	Incidents       int64   `json:"incidents"`
	Anomalies       int64   `json:"anomalies"`
	HistorySize     int     `json:"history_size"`
	ModelReady      bool    `json:"model_ready"`
	Mode            string  `json:"mode,omitempty"`
}

// DecayResult describes one decay cycle.
type DecayResult struct {
	Decayed  int      `json:"decayed"`
	Unlocked []string `json:"unlocked,omitempty"`
}
