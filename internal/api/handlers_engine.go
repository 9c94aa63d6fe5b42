// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/source"
)

// EngineStatus is returned by the control endpoints.
type EngineStatus struct {
	Running bool   `json:"running"`
	Paused  bool   `json:"paused"`
	Mode    string `json:"mode"`
	Ticks   int64  `json:"ticks"`
	Changed bool   `json:"changed"`
}

// LoadRequest names a file or URL to load. Exactly one must be set.
type LoadRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
	URL  string `json:"url" validate:"omitempty,url"`
}

func (h *Handler) status(changed bool) EngineStatus {
	st := h.scheduler.State()
	return EngineStatus{
		Running: st.Running,
		Paused:  st.Paused,
		Mode:    h.engine.Mode(),
		Ticks:   h.engine.Ticks(),
		Changed: changed,
	}
}

// EngineStatus reports the loop state.
func (h *Handler) EngineStatus(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, time.Now(), h.status(false), -1)
}

// EngineStart starts monitoring. Starting a running engine is not an error;
// changed is false.
func (h *Handler) EngineStart(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	changed := h.scheduler.Start()
	h.auditAction(r, logging.ActionStart, nil, map[string]string{"changed": strconv.FormatBool(changed)})
	respondSuccess(w, start, h.status(changed), -1)
}

// EngineStop stops monitoring and returns after the in-flight tick.
func (h *Handler) EngineStop(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	changed := h.scheduler.Stop()
	h.auditAction(r, logging.ActionStop, nil, map[string]string{"changed": strconv.FormatBool(changed)})
	respondSuccess(w, start, h.status(changed), -1)
}

// EnginePause pauses ticks. It answers 409 when the engine is stopped.
func (h *Handler) EnginePause(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.scheduler.Pause()
	h.auditAction(r, logging.ActionPause, err, nil)
	if err != nil {
		h.respondControlError(w, err)
		return
	}
	respondSuccess(w, start, h.status(true), -1)
}

// EngineResume resumes ticks. It answers 409 when the engine is stopped.
func (h *Handler) EngineResume(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := h.scheduler.Resume()
	h.auditAction(r, logging.ActionResume, err, nil)
	if err != nil {
		h.respondControlError(w, err)
		return
	}
	respondSuccess(w, start, h.status(true), -1)
}

// EngineReset clears all risk state and the anomaly model.
func (h *Handler) EngineReset(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.engine.Reset(r.Context())
	h.auditAction(r, logging.ActionReset, nil, nil)
	respondSuccess(w, start, h.engine.Snapshot(), -1)
}

func (h *Handler) respondControlError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrEngineStopped) {
		respondError(w, http.StatusConflict, models.ErrCodeConflict, "Engine is not running", nil)
		return
	}
	respondError(w, http.StatusInternalServerError, models.ErrCodeInternal, "Engine control failed", err)
}

// EngineLoad loads events and queues them for replay. It accepts:
//   - JSON {"path": "..."} or {"url": "..."}, limited by the LoadScope
//   - multipart/form-data with a "file" part
//   - a raw CSV or JSON event document
//
// The response is a source.LoadReport listing rejected rows.
func (h *Handler) EngineLoad(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	report, apiErr := h.readLoad(w, r)
	if apiErr != nil {
		h.auditAction(r, logging.ActionLoad, errors.New(apiErr.Message), nil)
		status := http.StatusBadRequest
		if apiErr.Code == models.ErrCodeForbidden {
			status = http.StatusForbidden
		}
		respondErrorWithDetails(w, status, apiErr.Code, apiErr.Message, apiErr.Details, nil)
		return
	}

	if len(report.Events) > 0 {
		n, err := h.engine.LoadEvents(ctx, report.Events)
		if err != nil {
			h.auditAction(r, logging.ActionLoad, err, map[string]string{"source": report.Source})
			respondStoreError(w, err)
			return
		}
		report.Queued = n
	}

	h.auditAction(r, logging.ActionLoad, nil, map[string]string{
		"source":   report.Source,
		"accepted": strconv.Itoa(report.Accepted),
		"rejected": strconv.Itoa(len(report.Rejected)),
	})
	respondSuccess(w, start, report, report.Queued)
}

func loadError(format string, args ...interface{}) *models.APIError {
	return &models.APIError{Code: models.ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// scopeError maps a LoadScope rejection. A missing file is a client error
// like any other loader failure.
func scopeError(err error) *models.APIError {
	if errors.Is(err, errLoadFileMissing) {
		return loadError("%s", err.Error())
	}
	return &models.APIError{Code: models.ErrCodeForbidden, Message: err.Error()}
}

// readLoad parses the request into a report. Loader failures such as a
// missing file or an unparsable document are client errors.
func (h *Handler) readLoad(w http.ResponseWriter, r *http.Request) (*source.LoadReport, *models.APIError) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, source.MaxLoadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, loadError("multipart upload requires a \"file\" part")
		}
		defer file.Close()
		return loaded(h.loader.LoadReader(ctx, file, "Upload: "+header.Filename, formatFor(header.Filename, "")))
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, loadError("failed to read request body")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, loadError("request body is empty")
	}

	if isLoadRequest(body) {
		var req LoadRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, loadError("invalid load request: path and url must be strings")
		}
		if (req.Path == "") == (req.URL == "") {
			return nil, loadError("set exactly one of path or url")
		}
		if apiErr := validateRequest(&req); apiErr != nil {
			return nil, apiErr
		}
		if req.Path != "" {
			path, err := h.loadScope.resolvePath(req.Path)
			if err != nil {
				return nil, scopeError(err)
			}
			return loaded(h.loader.LoadFile(ctx, path))
		}
		if err := h.loadScope.checkURL(req.URL); err != nil {
			return nil, scopeError(err)
		}
		return loaded(h.loader.LoadURL(ctx, req.URL))
	}

	return loaded(h.loader.LoadReader(ctx, bytes.NewReader(body), "Upload", formatFor("", mediaType)))
}

// isLoadRequest reports whether body is a JSON object whose only keys are
// "path" and "url". Anything else is treated as an event document.
func isLoadRequest(body []byte) bool {
	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) != nil || len(probe) == 0 {
		return false
	}
	for k := range probe {
		if k != "path" && k != "url" {
			return false
		}
	}
	return true
}

func loaded(report *source.LoadReport, err error) (*source.LoadReport, *models.APIError) {
	if err != nil {
		return nil, loadError("%s", err.Error())
	}
	return report, nil
}

// formatFor picks a loader format from a file name or media type. Empty
// means sniff the content.
func formatFor(name, mediaType string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".csv"), strings.Contains(mediaType, "csv"):
		return source.FormatCSV
	case strings.HasSuffix(strings.ToLower(name), ".json"), strings.Contains(mediaType, "json"):
		return source.FormatJSON
	default:
		return ""
	}
}
