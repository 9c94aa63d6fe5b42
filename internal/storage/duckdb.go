// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB driver

	"github.com/tomtom215/insiderwatch/internal/logging"
	"github.com/tomtom215/insiderwatch/internal/models"
)

// DuckDBStore implements Store on top of a DuckDB database.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore wraps an open connection. Call InitSchema before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// OpenDuckDB opens (or creates) the database at path and initializes the
// schema. Use ":memory:" for a throwaway database.
func OpenDuckDB(ctx context.Context, path string) (*DuckDBStore, error) {
	if path != ":memory:" {
		// 0750 per gosec G301
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	conn, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn, "duckdb")
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	s := NewDuckDBStore(conn)
	if err := s.InitSchema(ctx); err != nil {
		closeQuietly(conn, "duckdb")
		return nil, err
	}
	return s, nil
}

// InitSchema creates the events and incidents tables if they don't exist.
func (s *DuckDBStore) InitSchema(ctx context.Context) error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS events_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS incidents_seq START 1`,

		// Activity log and replay queue. seq breaks timestamp ties in
		// insertion order.
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('events_seq'),
			timestamp TIMESTAMP NOT NULL,
			user_id TEXT NOT NULL,
			activity TEXT NOT NULL,
			risk_increase DOUBLE,
			details TEXT,
			ip_address TEXT,
			file_path TEXT,
			url TEXT,
			source TEXT,
			processed BOOLEAN NOT NULL DEFAULT false
		)`,

		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			seq BIGINT NOT NULL DEFAULT nextval('incidents_seq'),
			timestamp TIMESTAMP NOT NULL,
			user_id TEXT NOT NULL,
			role TEXT,
			risk_score DOUBLE NOT NULL,
			message TEXT NOT NULL,
			alert_type TEXT NOT NULL,
			event_id TEXT
		)`,

		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_timestamp ON incidents(timestamp)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create storage schema: %w", err)
		}
	}

	// Flush the WAL so the schema survives an unclean shutdown.
	if _, err := s.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint after storage schema init")
	}
	return nil
}

const insertEventSQL = `INSERT INTO events
	(id, timestamp, user_id, activity, risk_increase, details, ip_address, file_path, url, source, processed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING seq`

// AppendEvent stores a single event.
func (s *DuckDBStore) AppendEvent(ctx context.Context, ev *models.Event) error {
	prepareEvent(ev)
	var seq int64
	err := s.db.QueryRowContext(ctx, insertEventSQL, eventArgs(ev)...).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// AppendEvents stores evs in one transaction.
func (s *DuckDBStore) AppendEvents(ctx context.Context, evs []*models.Event) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback() //nolint:errcheck
	}()

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer closeQuietly(stmt, "event insert statement")

	for i, ev := range evs {
		prepareEvent(ev)
		var seq int64
		if err := stmt.QueryRowContext(ctx, eventArgs(ev)...).Scan(&seq); err != nil {
			return 0, fmt.Errorf("failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}
	return len(evs), nil
}

func eventArgs(ev *models.Event) []interface{} {
	return []interface{}{
		ev.ID, ev.Timestamp.UTC(), ev.UserID, ev.Activity, nullFloat(ev.RiskIncrease),
		ev.Details, ev.IPAddress, ev.FilePath, ev.URL, ev.Source, ev.Processed,
	}
}

const selectEventColumns = `id, timestamp, user_id, activity, risk_increase,
	COALESCE(details, ''), COALESCE(ip_address, ''), COALESCE(file_path, ''),
	COALESCE(url, ''), COALESCE(source, ''), processed`

// NextUnprocessedEvent returns the oldest unprocessed event or nil.
func (s *DuckDBStore) NextUnprocessedEvent(ctx context.Context) (*models.Event, error) {
	query := `SELECT ` + selectEventColumns + ` FROM events
		WHERE NOT processed
		ORDER BY timestamp ASC, seq ASC
		LIMIT 1`

	ev, err := scanEvent(s.db.QueryRowContext(ctx, query))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next event: %w", err)
	}
	return ev, nil
}

// MarkProcessed flags the event as consumed.
func (s *DuckDBStore) MarkProcessed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE events SET processed = true WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// ListEvents returns up to limit events, newest first.
func (s *DuckDBStore) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	query := `SELECT ` + selectEventColumns + ` FROM events
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer closeQuietly(rows, "event rows")

	events := make([]models.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// ClearProcessedEvents deletes every processed event.
func (s *DuckDBStore) ClearProcessedEvents(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE processed`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear processed events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared events: %w", err)
	}
	return n, nil
}

// AppendIncident stores an incident.
func (s *DuckDBStore) AppendIncident(ctx context.Context, inc *models.Incident) error {
	prepareIncident(inc)
	query := `INSERT INTO incidents
		(id, timestamp, user_id, role, risk_score, message, alert_type, event_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq`

	var seq int64
	err := s.db.QueryRowContext(ctx, query,
		inc.ID, inc.Timestamp.UTC(), inc.UserID, inc.Role, inc.RiskScore,
		inc.Message, string(inc.AlertType), inc.EventID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// ListIncidents returns up to limit incidents, newest first.
func (s *DuckDBStore) ListIncidents(ctx context.Context, limit int) ([]models.Incident, error) {
	query := `SELECT id, timestamp, user_id, COALESCE(role, ''), risk_score,
			message, alert_type, COALESCE(event_id, '')
		FROM incidents
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer closeQuietly(rows, "incident rows")

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		var inc models.Incident
		var alertType string
		if err := rows.Scan(&inc.ID, &inc.Timestamp, &inc.UserID, &inc.Role,
			&inc.RiskScore, &inc.Message, &alertType, &inc.EventID); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}
		inc.AlertType = models.AlertType(alertType)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// Counts returns event and incident totals.
func (s *DuckDBStore) Counts(ctx context.Context) (models.Counts, error) {
	var c models.Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT processed) FROM events`,
	).Scan(&c.Events, &c.UnprocessedEvents)
	if err != nil {
		return c, fmt.Errorf("failed to count events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&c.Incidents); err != nil {
		return c, fmt.Errorf("failed to count incidents: %w", err)
	}
	return c, nil
}

// Ping checks the connection.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close checkpoints and closes the database.
func (s *DuckDBStore) Close() error {
	if _, err := s.db.Exec("CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint before close")
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var ev models.Event
	var risk sql.NullFloat64
	if err := row.Scan(&ev.ID, &ev.Timestamp, &ev.UserID, &ev.Activity, &risk,
		&ev.Details, &ev.IPAddress, &ev.FilePath, &ev.URL, &ev.Source, &ev.Processed); err != nil {
		return nil, err
	}
	if risk.Valid {
		ev.RiskIncrease = models.Float(risk.Float64)
	}
	return &ev, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
