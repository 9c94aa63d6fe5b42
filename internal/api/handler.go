// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/insiderwatch/internal/detection"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/scheduler"
	"github.com/tomtom215/insiderwatch/internal/source"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

// Engine is the part of detection.Engine the API reads and controls.
type Engine interface {
	Snapshot() detection.Snapshot
	Stats() detection.Stats
	User(id string) (detection.UserView, bool)
	Reset(ctx context.Context)
	LoadEvents(ctx context.Context, evs []*models.Event) (int, error)
	Ticks() int64
	Mode() string
}

// Scheduler starts, stops and pauses the engine loops.
type Scheduler interface {
	Start() bool
	Stop() bool
	Pause() error
	Resume() error
	State() scheduler.State
}

// CheckpointLister lists risk-score checkpoints, newest first.
type CheckpointLister interface {
	History(ctx context.Context, limit int) ([]models.RiskCheckpoint, error)
}

// BreakerReporter reports the storage circuit breaker.
type BreakerReporter interface {
	State() string
	Available() bool
}

// Deps are the handler's collaborators. Checkpoints, Breaker and WebSocket
// are optional.
type Deps struct {
	Engine      Engine
	Scheduler   Scheduler
	Store       storage.Store
	Loader      *source.Loader
	Checkpoints CheckpointLister
	Breaker     BreakerReporter
	WebSocket   http.Handler
	Audit       *logging.AuditLogger
	LoadScope   LoadScope
	Version     string
}

// Handler holds the HTTP handlers.
type Handler struct {
	engine      Engine
	scheduler   Scheduler
	store       storage.Store
	loader      *source.Loader
	checkpoints CheckpointLister
	breaker     BreakerReporter
	ws          http.Handler
	audit       *logging.AuditLogger
	loadScope   LoadScope
	version     string
	startTime   time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	audit := deps.Audit
	if audit == nil {
		audit = logging.NewAuditLogger()
	}
	loader := deps.Loader
	if loader == nil {
		loader = source.NewLoader(source.LoaderConfig{})
	}
	return &Handler{
		engine:      deps.Engine,
		scheduler:   deps.Scheduler,
		store:       deps.Store,
		loader:      loader,
		checkpoints: deps.Checkpoints,
		breaker:     deps.Breaker,
		ws:          deps.WebSocket,
		audit:       audit,
		loadScope:   deps.LoadScope,
		version:     deps.Version,
		startTime:   time.Now(),
	}
}

// auditAction records an operator action.
func (h *Handler) auditAction(r *http.Request, action logging.ControlAction, err error, details map[string]string) {
	ev := &logging.AuditEvent{
		Action:    action,
		RemoteIP:  r.RemoteAddr,
		RequestID: logging.RequestIDFromContext(r.Context()),
		Success:   err == nil,
		Details:   details,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	h.audit.Log(ev)
}
