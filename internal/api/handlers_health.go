// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// ReadyStatus is the readiness probe body.
type ReadyStatus struct {
	Ready      bool    `json:"ready"`
	Storage    string  `json:"storage"`
	Breaker    string  `json:"breaker,omitempty"`
	Running    bool    `json:"running"`
	Mode       string  `json:"mode"`
	Version    string  `json:"version,omitempty"`
	UptimeSecs float64 `json:"uptime_seconds"`
}

// HealthLive returns 200 while the process is alive.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, time.Now(), map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, -1)
}

// HealthReady returns 200 when storage answers and 503 otherwise. The engine
// keeps scoring simulated events during an outage, so this only gates
// traffic that needs storage.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	status := ReadyStatus{
		Ready:      true,
		Storage:    "ok",
		Mode:       h.engine.Mode(),
		Running:    h.scheduler.State().Running,
		Version:    h.version,
		UptimeSecs: time.Since(h.startTime).Seconds(),
	}
	if h.breaker != nil {
		status.Breaker = h.breaker.State()
		if !h.breaker.Available() {
			status.Ready = false
			status.Storage = "unavailable"
		}
	}
	if status.Ready && h.store.Ping(r.Context()) != nil {
		status.Ready = false
		status.Storage = "unavailable"
	}

	code, envelope := http.StatusOK, "success"
	if !status.Ready {
		code, envelope = http.StatusServiceUnavailable, "error"
	}
	respondJSON(w, code, &models.APIResponse{
		Status:   envelope,
		Data:     status,
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}

// WebSocket upgrades to the live feed.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ws == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "WebSocket service unavailable", nil)
		return
	}
	h.ws.ServeHTTP(w, r)
}
