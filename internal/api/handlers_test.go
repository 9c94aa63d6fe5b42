// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/insiderwatch/internal/detection"
	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/scheduler"
	"github.com/tomtom215/insiderwatch/internal/source"
	"github.com/tomtom215/insiderwatch/internal/storage"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// ===================================================================================================
// Test doubles
// ===================================================================================================

type stubEngine struct {
	mu      sync.Mutex
	users   []detection.UserView
	resets  int
	loaded  []*models.Event
	loadErr error
	ticks   int64
	mode    string
}

func newStubEngine() *stubEngine {
	users := []detection.UserView{
		{UserRiskState: models.UserRiskState{UserID: "user_A", Role: "developer", Status: models.StatusActive, RiskScore: 3}, Level: models.RiskLevelLow},
		{UserRiskState: models.UserRiskState{UserID: "user_B", Role: "sales", Status: models.StatusLocked, RiskScore: 24}, Level: models.RiskLevelLocked},
	}
	return &stubEngine{users: users, ticks: 7, mode: "simulation"}
}

func (e *stubEngine) Snapshot() detection.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return detection.Snapshot{Timestamp: time.Now(), Users: append([]detection.UserView(nil), e.users...), Stats: e.statsLocked()}
}

func (e *stubEngine) statsLocked() detection.Stats {
	return detection.Stats{TotalActivities: e.ticks, LockedUsers: 1, MaxRisk: 24, Mode: e.mode}
}

func (e *stubEngine) Stats() detection.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *stubEngine) User(id string) (detection.UserView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, u := range e.users {
		if u.UserID == id {
			return u, true
		}
	}
	return detection.UserView{}, false
}

func (e *stubEngine) Reset(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resets++
	e.ticks = 0
}

func (e *stubEngine) LoadEvents(ctx context.Context, evs []*models.Event) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loadErr != nil {
		return 0, e.loadErr
	}
	e.loaded = append(e.loaded, evs...)
	e.mode = "replay"
	return len(evs), nil
}

func (e *stubEngine) Ticks() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

func (e *stubEngine) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

func (e *stubEngine) loadedEvents() []*models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*models.Event(nil), e.loaded...)
}

type stubScheduler struct {
	mu      sync.Mutex
	running bool
	paused  bool
}

func (s *stubScheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running, s.paused = true, false
	return true
}

func (s *stubScheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.running, s.paused = false, false
	return true
}

func (s *stubScheduler) Pause() error  { return s.setPaused(true) }
func (s *stubScheduler) Resume() error { return s.setPaused(false) }

func (s *stubScheduler) setPaused(p bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return models.ErrEngineStopped
	}
	s.paused = p
	return nil
}

func (s *stubScheduler) State() scheduler.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return scheduler.State{Running: s.running, Paused: s.paused}
}

// downStore fails every call with ErrStorageUnavailable.
type downStore struct {
	*storage.MemoryStore
}

func (d downStore) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	return nil, fmt.Errorf("list incidents: %w", models.ErrStorageUnavailable)
}

func (d downStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	return nil, fmt.Errorf("list events: %w", models.ErrStorageUnavailable)
}

func (d downStore) Counts(ctx context.Context) (models.Counts, error) {
	return models.Counts{}, models.ErrStorageUnavailable
}

func (d downStore) Ping(ctx context.Context) error {
	return models.ErrStorageUnavailable
}

type stubBreaker struct{ open bool }

func (b stubBreaker) State() string {
	if b.open {
		return "open"
	}
	return "closed"
}
func (b stubBreaker) Available() bool { return !b.open }

type stubCheckpoints struct {
	history []models.RiskCheckpoint
}

func (c *stubCheckpoints) History(ctx context.Context, limit int) ([]models.RiskCheckpoint, error) {
	if limit < len(c.history) {
		return c.history[:limit], nil
	}
	return c.history, nil
}

type testServer struct {
	handler   http.Handler
	engine    *stubEngine
	scheduler *stubScheduler
	store     *storage.MemoryStore
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	ts := &testServer{
		engine:    newStubEngine(),
		scheduler: &stubScheduler{},
		store:     storage.NewMemoryStore(),
	}
	known := map[string]bool{"user_A": true, "user_B": true}
	deps := Deps{
		Engine:    ts.engine,
		Scheduler: ts.scheduler,
		Store:     ts.store,
		Loader: source.NewLoader(source.LoaderConfig{
			KnownUser: func(id string) bool { return known[id] },
		}),
		Audit:   logging.NewAuditLoggerWithLogger(logging.NewTestLogger(io.Discard)),
		Version: "test",
	}
	if mutate != nil {
		mutate(&deps)
	}
	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})
	ts.handler = NewRouter(NewHandler(deps), mw).Setup()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

// ===================================================================================================
// Engine control
// ===================================================================================================

func TestEngineControl_Lifecycle(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	steps := []struct {
		path        string
		wantStatus  int
		wantRunning bool
		wantPaused  bool
		wantChanged bool
	}{
		{"/api/v1/engine/start", http.StatusOK, true, false, true},
		{"/api/v1/engine/start", http.StatusOK, true, false, false},
		{"/api/v1/engine/pause", http.StatusOK, true, true, true},
		{"/api/v1/engine/resume", http.StatusOK, true, false, true},
		{"/api/v1/engine/stop", http.StatusOK, false, false, true},
		{"/api/v1/engine/stop", http.StatusOK, false, false, false},
	}

	for _, step := range steps {
		rec := ts.do(t, http.MethodPost, step.path, nil, "")
		if rec.Code != step.wantStatus {
			t.Fatalf("%s: status = %d, want %d (%s)", step.path, rec.Code, step.wantStatus, rec.Body.String())
		}
		var st EngineStatus
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
			t.Fatalf("%s: decode status: %v", step.path, err)
		}
		if st.Running != step.wantRunning || st.Paused != step.wantPaused || st.Changed != step.wantChanged {
			t.Errorf("%s: status = %+v", step.path, st)
		}
	}
}

func TestEngineControl_PauseWhenStopped(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/engine/pause", "/api/v1/engine/resume"} {
		rec := ts.do(t, http.MethodPost, path, nil, "")
		if rec.Code != http.StatusConflict {
			t.Errorf("%s: status = %d, want 409", path, rec.Code)
		}
		if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != models.ErrCodeConflict {
			t.Errorf("%s: error = %+v, want CONFLICT", path, env.Error)
		}
	}
}

func TestEngineControl_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/engine/start", nil, "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET start status = %d, want 405", rec.Code)
	}
}

func TestEngineStatus(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/engine/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st EngineStatus
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &st); err != nil {
		t.Fatal(err)
	}
	if st.Running || st.Mode != "simulation" || st.Ticks != 7 {
		t.Errorf("status = %+v", st)
	}
}

func TestEngineReset(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/v1/engine/reset", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ts.engine.resets != 1 {
		t.Errorf("resets = %d, want 1", ts.engine.resets)
	}
}

// ===================================================================================================
// Load
// ===================================================================================================

const sampleCSV = "timestamp,user_id,activity,details\n" +
	"2026-03-01 09:00:00,user_A,normal,all good\n" +
	"2026-03-01 09:01:00,user_B,file_download,\n" +
	"2026-03-01 09:02:00,ghost,normal,\n"

func decodeReport(t *testing.T, rec *httptest.ResponseRecorder) source.LoadReport {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var report source.LoadReport
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	return report
}

func TestEngineLoad_RawCSV(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	report := decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", strings.NewReader(sampleCSV), "text/csv"))
	if report.Total != 3 || report.Accepted != 2 || report.Queued != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Rejected) != 1 || report.Rejected[0].Row != 3 {
		t.Errorf("rejected = %+v, want row 3", report.Rejected)
	}
	if got := ts.engine.loadedEvents(); len(got) != 2 || got[0].UserID != "user_A" {
		t.Errorf("loaded = %+v", got)
	}
}

func TestEngineLoad_RawJSON(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	body := `{"events":[{"user":"user_A","action":"login_from_unusual_ip","ip":"10.0.0.8"}]}`
	report := decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", strings.NewReader(body), "application/json"))
	if report.Format != source.FormatJSON || report.Accepted != 1 {
		t.Errorf("report = %+v", report)
	}
	got := ts.engine.loadedEvents()
	if len(got) != 1 || got[0].IPAddress != "10.0.0.8" {
		t.Errorf("loaded = %+v", got)
	}
}

func TestEngineLoad_Path(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ts := newTestServer(t, func(d *Deps) { d.LoadScope.Dir = dir })

	path := filepath.Join(dir, "events.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(LoadRequest{Path: path})
	report := decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", bytes.NewReader(body), "application/json"))
	if report.Source != "File: "+path || report.Accepted != 2 {
		t.Errorf("report = %+v", report)
	}

	// Relative paths resolve against the load directory.
	body, _ = json.Marshal(LoadRequest{Path: "events.csv"})
	report = decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", bytes.NewReader(body), "application/json"))
	if report.Source != "File: "+path {
		t.Errorf("relative load source = %q, want %q", report.Source, "File: "+path)
	}
}

func TestEngineLoad_URL(t *testing.T) {
	t.Parallel()
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, sampleCSV)
	}))
	defer remote.Close()
	ts := newTestServer(t, func(d *Deps) { d.LoadScope.Hosts = []string{"127.0.0.1"} })

	body, _ := json.Marshal(LoadRequest{URL: remote.URL + "/feed"})
	report := decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", bytes.NewReader(body), "application/json"))
	if report.Format != source.FormatCSV || report.Queued != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestEngineLoad_Multipart(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.WriteString(part, sampleCSV)
	_ = mw.Close()

	report := decodeReport(t, ts.do(t, http.MethodPost, "/api/v1/engine/load", &buf, mw.FormDataContentType()))
	if report.Source != "Upload: upload.csv" || report.Accepted != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestEngineLoad_BadRequests(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ts := newTestServer(t, func(d *Deps) {
		d.LoadScope = LoadScope{Dir: dir, Hosts: []string{"example.com"}}
	})

	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"empty body", "", "application/json"},
		{"path and url", `{"path":"/tmp/a.csv","url":"https://example.com/a.csv"}`, "application/json"},
		{"invalid url", `{"url":"not a url"}`, "application/json"},
		{"missing file", `{"path":"missing.csv"}`, "application/json"},
		{"bad json", `[{"user_id":`, "application/json"},
		{"multipart without file", "--x--\r\n", "multipart/form-data; boundary=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/engine/load", strings.NewReader(tt.body), tt.contentType)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (%s)", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != models.ErrCodeValidation {
				t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
			}
		})
	}
	if n := len(ts.engine.loadedEvents()); n != 0 {
		t.Errorf("loaded %d events from bad requests", n)
	}
}

func TestEngineLoad_OutsideScopeIsForbidden(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.csv")
	if err := os.WriteFile(outside, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(dir, "link.csv")); err != nil {
		t.Fatal(err)
	}

	scoped := newTestServer(t, func(d *Deps) {
		d.LoadScope = LoadScope{Dir: dir, Hosts: []string{"feeds.example.com"}}
	})
	unscoped := newTestServer(t, nil)

	tests := []struct {
		name string
		ts   *testServer
		body string
	}{
		{"absolute path outside", scoped, `{"path":"` + outside + `"}`},
		{"dot-dot escape", scoped, `{"path":"../secret.csv"}`},
		{"symlink escape", scoped, `{"path":"link.csv"}`},
		{"host not allowed", scoped, `{"url":"http://169.254.169.254/latest/meta-data"}`},
		{"scheme not allowed", scoped, `{"url":"ftp://feeds.example.com/a.csv"}`},
		{"path loads disabled", unscoped, `{"path":"events.csv"}`},
		{"url loads disabled", unscoped, `{"url":"https://feeds.example.com/a.csv"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.ts.do(t, http.MethodPost, "/api/v1/engine/load", strings.NewReader(tt.body), "application/json")
			if rec.Code != http.StatusForbidden {
				t.Fatalf("status = %d, want 403 (%s)", rec.Code, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != models.ErrCodeForbidden {
				t.Errorf("error = %+v, want FORBIDDEN", env.Error)
			}
		})
	}
	if n := len(scoped.engine.loadedEvents()) + len(unscoped.engine.loadedEvents()); n != 0 {
		t.Errorf("loaded %d events from out-of-scope requests", n)
	}
}

func TestEngineLoad_QueueUnavailable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	ts.engine.loadErr = fmt.Errorf("queue loaded events: %w", models.ErrStorageUnavailable)

	rec := ts.do(t, http.MethodPost, "/api/v1/engine/load", strings.NewReader(sampleCSV), "text/csv")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestIsLoadRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want bool
	}{
		{`{"path":"a.csv"}`, true},
		{`{"url":"https://example.com/a.json"}`, true},
		{`{"user_id":"user_A","activity":"normal","url":"https://example.com"}`, false},
		{`[{"path":"a.csv"}]`, false},
		{`{}`, false},
	}
	for _, tt := range tests {
		if got := isLoadRequest([]byte(tt.body)); got != tt.want {
			t.Errorf("isLoadRequest(%s) = %v, want %v", tt.body, got, tt.want)
		}
	}
}

// ===================================================================================================
// Data endpoints
// ===================================================================================================

func TestUsers(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/users", nil, "")
	env := decodeEnvelope(t, rec)
	var users []detection.UserView
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || env.Metadata.Count != 2 {
		t.Fatalf("users = %d, count = %d", len(users), env.Metadata.Count)
	}
	if users[1].Level != models.RiskLevelLocked {
		t.Errorf("user_B level = %q, want locked", users[1].Level)
	}
}

func TestUserByID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/user_A", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var user detection.UserView
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &user); err != nil {
		t.Fatal(err)
	}
	if user.UserID != "user_A" || user.Role != "developer" {
		t.Errorf("user = %+v", user)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/users/nobody", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown user status = %d, want 404", rec.Code)
	}
}

func seedIncidents(t *testing.T, store *storage.MemoryStore, n int) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		inc := &models.Incident{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			UserID:    "user_B",
			Role:      "sales",
			RiskScore: 21,
			Message:   "HIGH-RISK ALERT: user_B (sales) triggered security incident - Account LOCKED",
			AlertType: models.AlertTypeRuleBased,
		}
		if err := store.AppendIncident(context.Background(), inc); err != nil {
			t.Fatal(err)
		}
	}
}

func TestIncidents(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	seedIncidents(t, ts.store, 5)

	rec := ts.do(t, http.MethodGet, "/api/v1/incidents?limit=3", nil, "")
	var incidents []models.Incident
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &incidents); err != nil {
		t.Fatal(err)
	}
	if len(incidents) != 3 {
		t.Fatalf("incidents = %d, want 3", len(incidents))
	}
	if !incidents[0].Timestamp.After(incidents[1].Timestamp) {
		t.Error("incidents should be newest first")
	}
}

func TestIncidentsExport(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	seedIncidents(t, ts.store, 2)

	rec := ts.do(t, http.MethodGet, "/api/v1/incidents/export", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "incidents_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Time,User,Risk Score,Alert Type,Message") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestIncidentsExport_Gzip(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	seedIncidents(t, ts.store, 2)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/incidents/export", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(body), "Time,User,Risk Score,Alert Type,Message") {
		t.Errorf("decompressed body = %q", body)
	}
}

func TestEventsAndExport(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	for _, act := range []string{"normal", "file_download"} {
		if err := ts.store.AppendEvent(context.Background(), &models.Event{UserID: "user_A", Activity: act}); err != nil {
			t.Fatal(err)
		}
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/events", nil, "")
	var events []models.Event
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/events/export", nil, "")
	if !strings.HasPrefix(rec.Body.String(), "Time,User,Activity,Risk Increase") {
		t.Errorf("export = %q", rec.Body.String())
	}
}

func TestStorageUnavailable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, func(d *Deps) {
		d.Store = downStore{storage.NewMemoryStore()}
	})

	for _, path := range []string{"/api/v1/incidents", "/api/v1/events", "/api/v1/incidents/export"} {
		rec := ts.do(t, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
			continue
		}
		if env := decodeEnvelope(t, rec); env.Error == nil || env.Error.Code != models.ErrCodeStorageUnavailable {
			t.Errorf("%s: error = %+v", path, env.Error)
		}
	}

	// Stats still answer from memory.
	rec := ts.do(t, http.MethodGet, "/api/v1/stats", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats StatsResponse
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Storage != nil || stats.TotalActivities != 7 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)
	seedIncidents(t, ts.store, 1)

	rec := ts.do(t, http.MethodGet, "/api/v1/stats", nil, "")
	var stats StatsResponse
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Storage == nil || stats.Storage.Incidents != 1 {
		t.Errorf("storage = %+v", stats.Storage)
	}
	if stats.LockedUsers != 1 || stats.MaxRisk != 24 {
		t.Errorf("stats = %+v", stats.Stats)
	}
}

func TestCheckpoints(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	if rec := ts.do(t, http.MethodGet, "/api/v1/checkpoints", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled checkpoints status = %d, want 404", rec.Code)
	}

	cps := &stubCheckpoints{history: []models.RiskCheckpoint{
		{Timestamp: time.Now(), Scores: map[string]float64{"user_A": 2}},
		{Timestamp: time.Now().Add(-time.Minute), Scores: map[string]float64{"user_A": 4}},
	}}
	ts = newTestServer(t, func(d *Deps) { d.Checkpoints = cps })
	rec := ts.do(t, http.MethodGet, "/api/v1/checkpoints?limit=1", nil, "")
	var history []models.RiskCheckpoint
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Scores["user_A"] != 2 {
		t.Errorf("history = %+v", history)
	}
}

// ===================================================================================================
// Health, routing and middleware
// ===================================================================================================

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, func(d *Deps) { d.Breaker = stubBreaker{} })
	if rec := ts.do(t, http.MethodGet, "/api/v1/health/live", nil, ""); rec.Code != http.StatusOK {
		t.Errorf("live = %d", rec.Code)
	}
	rec := ts.do(t, http.MethodGet, "/api/v1/health/ready", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ready = %d", rec.Code)
	}
	var ready ReadyStatus
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &ready); err != nil {
		t.Fatal(err)
	}
	if !ready.Ready || ready.Breaker != "closed" || ready.Version != "test" {
		t.Errorf("ready = %+v", ready)
	}

	ts = newTestServer(t, func(d *Deps) { d.Breaker = stubBreaker{open: true} })
	rec = ts.do(t, http.MethodGet, "/api/v1/health/ready", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with open breaker = %d, want 503", rec.Code)
	}
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &ready); err != nil {
		t.Fatal(err)
	}
	if ready.Breaker != "open" || ready.Storage != "unavailable" {
		t.Errorf("ready = %+v", ready)
	}
}

func TestRouter_NotFoundAndRequestID(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/nope", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Status != "error" || env.Error == nil || env.Error.Code != models.ErrCodeNotFound {
		t.Errorf("envelope = %+v", env)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "req-123")
	out := httptest.NewRecorder()
	ts.handler.ServeHTTP(out, req)
	if got := out.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	ts.do(t, http.MethodGet, "/api/v1/users/user_A", nil, "")
	rec := ts.do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/v1/users/{id}"`) {
		t.Error("api latency should be labelled by route pattern")
	}
}

func TestRouter_WebSocketUnavailable(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/ws", nil, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(&MiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	handler := NewRouter(NewHandler(Deps{
		Engine:    newStubEngine(),
		Scheduler: &stubScheduler{},
		Store:     storage.NewMemoryStore(),
	}), mw).Setup()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/engine/status", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	mw := NewMiddleware(&MiddlewareConfig{
		CORSAllowedOrigins: []string{"https://soc.example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		RateLimitDisabled:  true,
	})
	handler := NewRouter(NewHandler(Deps{
		Engine:    newStubEngine(),
		Scheduler: &stubScheduler{},
		Store:     storage.NewMemoryStore(),
	}), mw).Setup()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/engine/start", nil)
	req.Header.Set("Origin", "https://soc.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://soc.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}

func TestListLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=5", 5},
		{"?limit=-1", 100},
		{"?limit=abc", 100},
		{"?limit=999999", maxListLimit},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
		if got := listLimit(r, 100); got != tt.want {
			t.Errorf("listLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
