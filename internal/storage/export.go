// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// ExportTimeFormat is the timestamp layout used in CSV exports.
const ExportTimeFormat = "2006-01-02 15:04:05"

var (
	incidentHeader = []string{"Time", "User", "Risk Score", "Alert Type", "Message"}
	eventHeader    = []string{"Time", "User", "Activity", "Risk Increase"}
)

// WriteIncidentsCSV writes the incident log as CSV.
func WriteIncidentsCSV(w io.Writer, incidents []models.Incident) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(incidentHeader); err != nil {
		return fmt.Errorf("write incident header: %w", err)
	}
	for i := range incidents {
		inc := &incidents[i]
		row := []string{
			formatExportTime(inc.Timestamp),
			inc.UserID,
			strconv.FormatFloat(inc.RiskScore, 'f', -1, 64),
			string(inc.AlertType),
			inc.Message,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write incident %s: %w", inc.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEventsCSV writes the activity log as CSV. A missing risk override
// is written as an empty cell.
func WriteEventsCSV(w io.Writer, events []models.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(eventHeader); err != nil {
		return fmt.Errorf("write event header: %w", err)
	}
	for i := range events {
		ev := &events[i]
		risk := ""
		if ev.RiskIncrease != nil {
			risk = strconv.FormatFloat(*ev.RiskIncrease, 'f', -1, 64)
		}
		row := []string{formatExportTime(ev.Timestamp), ev.UserID, ev.Activity, risk}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write event %s: %w", ev.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatExportTime(t time.Time) string {
	return t.UTC().Format(ExportTimeFormat)
}
