// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/insiderwatch/internal/source"
)

func TestRun_RoundTripsThroughLoader(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"csv", "json"} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "events."+format)
			if err := run(format, 12, path, "", 7); err != nil {
				t.Fatalf("run: %v", err)
			}

			report, err := source.NewLoader(source.LoaderConfig{}).LoadFile(context.Background(), path)
			if err != nil {
				t.Fatalf("LoadFile: %v", err)
			}
			if report.Total != 12 || report.Accepted != 12 {
				t.Errorf("total/accepted = %d/%d, want 12/12 (rejected %+v)", report.Total, report.Accepted, report.Rejected)
			}
		})
	}
}

func TestRun_CustomRoster(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.json")
	if err := run("json", 5, path, "eve:contractor", 1); err != nil {
		t.Fatalf("run: %v", err)
	}
	report, err := source.NewLoader(source.LoaderConfig{
		KnownUser: func(id string) bool { return id == "eve" },
	}).LoadFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if report.Accepted != 5 {
		t.Errorf("accepted = %d, want 5", report.Accepted)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := run("xml", 5, filepath.Join(dir, "x"), "", 1); err == nil {
		t.Error("expected error for unknown format")
	}
	if err := run("csv", 5, filepath.Join(dir, "y"), ",,,", 1); err == nil {
		t.Error("expected error for empty roster")
	}
	if err := run("csv", 5, filepath.Join(dir, "missing", "z.csv"), "", 1); err == nil {
		t.Error("expected error for unwritable path")
	}
	if _, err := os.Stat(filepath.Join(dir, "missing")); !os.IsNotExist(err) {
		t.Error("run must not create parent directories")
	}
}
