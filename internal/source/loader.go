// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/validation"
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// MaxLoadBytes caps the size of a single file, URL or upload.
const MaxLoadBytes = 32 << 20

// ErrUnsupportedFormat means the input is neither CSV nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported event format")

// Field aliases accepted in input rows, in lookup order.
var (
	userKeys      = []string{"user_id", "user", "username", "userId"}
	activityKeys  = []string{"activity", "action", "event_type", "type"}
	timestampKeys = []string{"timestamp", "time", "date"}
	ipKeys        = []string{"ip_address", "ip"}
	filePathKeys  = []string{"file_path", "filepath"}
)

// Naive layouts are read in local time.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// RowError describes one rejected input row. Row is 1-based and counts
// data rows only, not the CSV header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// LoadReport is the outcome of one load.
type LoadReport struct {
	Source   string     `json:"source"`
	Format   string     `json:"format"`
	Total    int        `json:"total"`
	Accepted int        `json:"accepted"`
	Rejected []RowError `json:"rejected"`
	Queued   int        `json:"queued"`

	Events []*models.Event `json:"-"`
}

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	// KnownUser reports whether a user is in the roster.
	KnownUser func(id string) bool

	// KnownActivity reports whether an activity has a rule.
	KnownActivity func(activity string) bool

	// HTTPClient fetches URLs. Nil uses a client with a 30s timeout.
	HTTPClient *http.Client

	// Now stamps rows without a timestamp. Nil uses time.Now.
	Now func() time.Time
}

// Loader parses external event files into validated events.
type Loader struct {
	cfg LoaderConfig
}

// NewLoader builds a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.KnownUser == nil {
		cfg.KnownUser = func(string) bool { return true }
	}
	if cfg.KnownActivity == nil {
		cfg.KnownActivity = func(string) bool { return true }
	}
	return &Loader{cfg: cfg}
}

// LoadFile reads a local CSV or JSON file.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadReport, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("path", path).Msg("Failed to close event file")
		}
	}()

	return l.LoadReader(ctx, f, "File: "+path, formatFromExt(path))
}

// LoadURL fetches a CSV or JSON document over HTTP.
func (l *Loader) LoadURL(ctx context.Context, rawURL string) (*LoadReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("url", rawURL).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	format := formatFromExt(rawURL)
	if format == "" {
		format = formatFromContentType(resp.Header.Get("Content-Type"))
	}
	return l.LoadReader(ctx, resp.Body, "URL: "+rawURL, format)
}

// LoadReader parses r. format may be empty, in which case the content is
// sniffed. sourceTag is stored on every accepted event.
func (l *Loader) LoadReader(ctx context.Context, r io.Reader, sourceTag, format string) (*LoadReport, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxLoadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sourceTag, err)
	}
	if len(data) > MaxLoadBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes", sourceTag, MaxLoadBytes)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if format == "" {
		format = sniffFormat(data)
	}

	var rows []map[string]string
	switch format {
	case FormatJSON:
		rows, err = parseJSONRows(data)
	case FormatCSV:
		rows, err = parseCSVRows(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	report := &LoadReport{
		Source:   sourceTag,
		Format:   format,
		Total:    len(rows),
		Rejected: make([]RowError, 0),
		Events:   make([]*models.Event, 0, len(rows)),
	}
	for i, row := range rows {
		ev, reason := l.normalize(row, sourceTag)
		if reason != "" {
			report.Rejected = append(report.Rejected, RowError{Row: i + 1, Reason: reason})
			continue
		}
		report.Events = append(report.Events, ev)
	}
	report.Accepted = len(report.Events)

	logging.Info().
		Str("source", sourceTag).
		Str("format", format).
		Int("total", report.Total).
		Int("accepted", report.Accepted).
		Int("rejected", len(report.Rejected)).
		Msg("Events loaded")
	return report, nil
}

// normalize maps one row onto an Event. A non-empty reason rejects the row.
func (l *Loader) normalize(row map[string]string, sourceTag string) (*models.Event, string) {
	userID := first(row, userKeys)
	activity := first(row, activityKeys)
	if userID == "" {
		return nil, "missing user_id"
	}
	if activity == "" {
		return nil, "missing activity"
	}
	if !l.cfg.KnownUser(userID) {
		return nil, fmt.Sprintf("unknown user %q", userID)
	}
	if !l.cfg.KnownActivity(activity) {
		return nil, fmt.Sprintf("unknown activity %q", activity)
	}

	ts := l.cfg.Now()
	if raw := first(row, timestampKeys); raw != "" {
		parsed, err := parseTimestamp(raw)
		if err != nil {
			return nil, fmt.Sprintf("invalid timestamp %q", raw)
		}
		ts = parsed
	}

	ev := &models.Event{
		ID:        uuid.NewString(),
		Timestamp: ts.UTC(),
		UserID:    userID,
		Activity:  activity,
		Details:   row["details"],
		IPAddress: first(row, ipKeys),
		FilePath:  first(row, filePathKeys),
		URL:       row["url"],
		Source:    sourceTag,
	}

	if raw := strings.TrimSpace(row["risk_increase"]); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Sprintf("invalid risk_increase %q", raw)
		}
		ev.RiskIncrease = models.Float(v)
	}

	if verr := validation.ValidateStruct(ev); verr != nil {
		return nil, verr.Error()
	}
	return ev, ""
}

func first(row map[string]string, keys []string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(row[k]); v != "" {
			return v
		}
	}
	return ""
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}

func formatFromExt(name string) string {
	// Strip any query string before looking at the extension.
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	default:
		return ""
	}
}

func formatFromContentType(ct string) string {
	ct = strings.ToLower(ct)
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "csv"):
		return FormatCSV
	default:
		return ""
	}
}

func sniffFormat(data []byte) string {
	trimmed := bytes.TrimLeft(data, " \t\r\n\uFEFF")
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// parseJSONRows accepts an array of objects, a single object or an object
// with an "events" array.
func parseJSONRows(data []byte) ([]map[string]string, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("JSON parsing error: %w", err)
	}

	var items []interface{}
	switch v := doc.(type) {
	case []interface{}:
		items = v
	case map[string]interface{}:
		if nested, ok := v["events"].([]interface{}); ok {
			items = nested
		} else {
			items = []interface{}{v}
		}
	default:
		return nil, fmt.Errorf("JSON parsing error: expected an object or array, got %T", doc)
	}

	rows := make([]map[string]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			// Keeps row numbering aligned; normalize rejects it.
			rows = append(rows, map[string]string{})
			continue
		}
		row := make(map[string]string, len(obj))
		for k, val := range obj {
			row[k] = stringify(val)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func parseCSVRows(data []byte) ([]map[string]string, error) {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV parsing error: %w", err)
	}
	if len(records) == 0 {
		return []map[string]string{}, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
