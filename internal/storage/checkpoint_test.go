// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

func setupCheckpointStore(t *testing.T, retain int) *CheckpointStore {
	t.Helper()
	cs, err := OpenCheckpointStore(CheckpointConfig{Path: t.TempDir(), Retain: retain})
	if err != nil {
		t.Fatalf("OpenCheckpointStore failed: %v", err)
	}
	t.Cleanup(func() { cs.Close() })
	return cs
}

func testStates(riskA, riskB float64) []models.UserRiskState {
	return []models.UserRiskState{
		{UserID: "user_A", Role: "developer", RiskScore: riskA, Status: models.StatusActive},
		{UserID: "user_B", Role: "sales", RiskScore: riskB, Status: models.StatusLocked},
	}
}

func TestCheckpointStore_LatestEmpty(t *testing.T) {
	t.Parallel()
	cs := setupCheckpointStore(t, 0)

	cp, err := cs.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil checkpoint, got %+v", cp)
	}
}

func TestCheckpointStore_SaveAndLatest(t *testing.T) {
	t.Parallel()
	cs := setupCheckpointStore(t, 0)
	ctx := context.Background()

	if err := cs.SaveRiskScores(ctx, base, testStates(3, 7)); err != nil {
		t.Fatalf("SaveRiskScores failed: %v", err)
	}
	if err := cs.SaveRiskScores(ctx, base.Add(time.Minute), testStates(4, 0)); err != nil {
		t.Fatalf("SaveRiskScores failed: %v", err)
	}

	cp, err := cs.Latest(ctx)
	if err != nil || cp == nil {
		t.Fatalf("Latest = %v, %v", cp, err)
	}
	if !cp.Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("Timestamp = %v, want newest", cp.Timestamp)
	}
	if cp.Scores["user_A"] != 4 || cp.Scores["user_B"] != 0 {
		t.Errorf("Scores = %v", cp.Scores)
	}
	if len(cp.States) != 2 || cp.States[1].Status != models.StatusLocked {
		t.Errorf("States = %+v", cp.States)
	}
}

func TestCheckpointStore_HistoryNewestFirst(t *testing.T) {
	t.Parallel()
	cs := setupCheckpointStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := cs.SaveRiskScores(ctx, base.Add(time.Duration(i)*time.Second), testStates(float64(i), 0)); err != nil {
			t.Fatalf("SaveRiskScores failed: %v", err)
		}
	}

	hist, err := cs.History(ctx, 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(hist))
	}
	for i, want := range []float64{4, 3, 2} {
		if hist[i].Scores["user_A"] != want {
			t.Errorf("hist[%d] user_A = %v, want %v", i, hist[i].Scores["user_A"], want)
		}
	}
}

func TestCheckpointStore_Retention(t *testing.T) {
	t.Parallel()
	cs := setupCheckpointStore(t, 2)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := cs.SaveRiskScores(ctx, base.Add(time.Duration(i)*time.Second), testStates(float64(i), 0)); err != nil {
			t.Fatalf("SaveRiskScores failed: %v", err)
		}
	}

	n, err := cs.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	cp, err := cs.Latest(ctx)
	if err != nil || cp == nil {
		t.Fatalf("Latest = %v, %v", cp, err)
	}
	if cp.Scores["user_A"] != 3 {
		t.Errorf("retention dropped the newest checkpoint: %v", cp.Scores)
	}
}

func TestCheckpointStore_Reopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	ctx := context.Background()

	cs, err := OpenCheckpointStore(CheckpointConfig{Path: dir})
	if err != nil {
		t.Fatalf("OpenCheckpointStore failed: %v", err)
	}
	if err := cs.SaveRiskScores(ctx, base, testStates(9, 1)); err != nil {
		t.Fatalf("SaveRiskScores failed: %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	cs, err = OpenCheckpointStore(CheckpointConfig{Path: dir})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer cs.Close()

	cp, err := cs.Latest(ctx)
	if err != nil || cp == nil {
		t.Fatalf("Latest = %v, %v", cp, err)
	}
	if cp.Scores["user_A"] != 9 {
		t.Errorf("user_A = %v, want 9", cp.Scores["user_A"])
	}
}

func TestCheckpointStore_ClosedAndInMemory(t *testing.T) {
	t.Parallel()
	cs, err := OpenCheckpointStore(CheckpointConfig{InMemory: true})
	if err != nil {
		t.Fatalf("OpenCheckpointStore failed: %v", err)
	}
	if err := cs.SaveRiskScores(context.Background(), base, testStates(1, 1)); err != nil {
		t.Fatalf("SaveRiskScores failed: %v", err)
	}
	if err := cs.RunGC(); err != nil {
		t.Errorf("RunGC in memory mode = %v, want nil", err)
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := cs.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}

	_, err = cs.History(context.Background(), 1)
	if !errors.Is(err, ErrCheckpointClosed) {
		t.Errorf("expected ErrCheckpointClosed, got %v", err)
	}
}
