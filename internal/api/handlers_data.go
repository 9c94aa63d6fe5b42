// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/insiderwatch/internal/detection"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

// exportLimit bounds CSV exports.
const exportLimit = 100000

// StatsResponse is the engine statistics plus storage counts. Storage is nil
// while storage is unavailable.
type StatsResponse struct {
	detection.Stats
	Storage *models.Counts `json:"storage"`
}

// Users returns a consistent snapshot of every user.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := h.engine.Snapshot()
	respondSuccess(w, start, snap.Users, len(snap.Users))
}

// UserByID returns one user.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	id := chi.URLParam(r, "id")
	view, ok := h.engine.User(id)
	if !ok {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "User not found: "+sanitizeLogValue(id), nil)
		return
	}
	respondSuccess(w, start, view, -1)
}

// Incidents lists incidents, newest first.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	incidents, err := h.store.ListIncidents(r.Context(), listLimit(r, storage.DefaultListLimit))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, start, incidents, len(incidents))
}

// Events lists the activity log, newest first.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	events, err := h.store.ListEvents(r.Context(), listLimit(r, storage.DefaultListLimit))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondSuccess(w, start, events, len(events))
}

// IncidentsExport streams incidents as CSV.
func (h *Handler) IncidentsExport(w http.ResponseWriter, r *http.Request) {
	incidents, err := h.store.ListIncidents(r.Context(), exportLimit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := storage.WriteIncidentsCSV(&buf, incidents); err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Export failed", err)
		return
	}
	writeCSV(w, r, "incidents", buf.Bytes(), len(incidents))
}

// EventsExport streams the activity log as CSV.
func (h *Handler) EventsExport(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.ListEvents(r.Context(), exportLimit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := storage.WriteEventsCSV(&buf, events); err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Export failed", err)
		return
	}
	writeCSV(w, r, "activity_log", buf.Bytes(), len(events))
}

func writeCSV(w http.ResponseWriter, r *http.Request, name string, data []byte, rows int) {
	filename := fmt.Sprintf("%s_%s.csv", name, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write CSV export")
		return
	}
	logging.Ctx(r.Context()).Info().Str("export", name).Int("rows", rows).Msg("CSV export served")
}

// Stats returns the engine statistics and storage counts. A storage outage
// still returns the in-memory statistics.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resp := StatsResponse{Stats: h.engine.Stats()}
	if counts, err := h.store.Counts(r.Context()); err == nil {
		resp.Storage = &counts
	} else {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Storage counts unavailable")
	}
	respondSuccess(w, start, resp, -1)
}

// Checkpoints lists risk-score checkpoints, newest first.
func (h *Handler) Checkpoints(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.checkpoints == nil {
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "Checkpoints are disabled", nil)
		return
	}
	history, err := h.checkpoints.History(r.Context(), listLimit(r, 20))
	if err != nil {
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Failed to read checkpoints", err)
		return
	}
	respondSuccess(w, start, history, len(history))
}
