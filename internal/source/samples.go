// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/insiderwatch/internal/models"
	"github.com/tomtom215/insiderwatch/internal/rules"
)

// SampleConfig controls sample file generation.
type SampleConfig struct {
	Users []models.User
	Rules *rules.Rules
	Count int
	Rand  RandFunc
	Now   func() time.Time
}

// sampleRow is one generated event in the sample file shape.
type sampleRow struct {
	Timestamp    string  `json:"timestamp"`
	UserID       string  `json:"user_id"`
	Activity     string  `json:"activity"`
	RiskIncrease float64 `json:"risk_increase"`
	Details      string  `json:"details"`
	IPAddress    string  `json:"ip_address"`
	FilePath     string  `json:"file_path,omitempty"`
}

var sampleCSVHeader = []string{
	"timestamp", "user_id", "activity", "risk_increase", "details", "ip_address", "file_path",
}

func (c *SampleConfig) rows() ([]sampleRow, error) {
	if len(c.Users) == 0 {
		return nil, models.ErrNoUsers
	}
	if c.Rules == nil {
		c.Rules = rules.Default()
	}
	if c.Count <= 0 {
		c.Count = 50
	}
	if c.Rand == nil {
		c.Rand = NewRand(0)
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	activities := c.Rules.Activities()
	if len(activities) == 0 {
		return nil, fmt.Errorf("no activities to sample")
	}

	out := make([]sampleRow, 0, c.Count)
	for i := 0; i < c.Count; i++ {
		user := c.Users[pick(c.Rand, len(c.Users))]
		activity := activities[pick(c.Rand, len(activities))]
		row := sampleRow{
			Timestamp:    c.Now().Format("2006-01-02T15:04:05.000000"),
			UserID:       user.ID,
			Activity:     activity,
			RiskIncrease: c.Rules.RiskFor(activity),
			Details:      fmt.Sprintf("Sample event %d", i+1),
			IPAddress:    fmt.Sprintf("192.168.1.%d", 1+pick(c.Rand, 255)),
		}
		if activity == rules.ActivityFileDownload || activity == rules.ActivityDataCopyToUSB {
			row.FilePath = fmt.Sprintf("/data/file_%d.txt", i)
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteSampleCSV writes cfg.Count sample events as CSV.
func WriteSampleCSV(w io.Writer, cfg SampleConfig) error {
	rows, err := cfg.rows()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(sampleCSVHeader); err != nil {
		return fmt.Errorf("write sample header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp, r.UserID, r.Activity,
			strconv.FormatFloat(r.RiskIncrease, 'f', -1, 64),
			r.Details, r.IPAddress, r.FilePath,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write sample row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSampleJSON writes cfg.Count sample events as an indented JSON array.
func WriteSampleJSON(w io.Writer, cfg SampleConfig) error {
	rows, err := cfg.rows()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal samples: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}
