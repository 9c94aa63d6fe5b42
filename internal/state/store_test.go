// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/insiderwatch/internal/models"
)

func testRoster() []models.User {
	return []models.User{
		{ID: "user_A", Role: "developer"},
		{ID: "user_B", Role: "sales"},
		{ID: "user_C", Role: "analyst"},
		{ID: "user_D", Role: "admin"},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(testRoster())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestNewStore_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(nil); !errors.Is(err, models.ErrNoUsers) {
		t.Errorf("NewStore(nil) error = %v, want ErrNoUsers", err)
	}
	if _, err := NewStore([]models.User{{ID: ""}}); !errors.Is(err, models.ErrNoUsers) {
		t.Errorf("NewStore(empty id) error = %v, want ErrNoUsers", err)
	}
	if _, err := NewStore([]models.User{{ID: "a"}, {ID: "a"}}); err == nil {
		t.Error("NewStore(duplicate) should fail")
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	snap := s.Snapshot()
	if len(snap) != 4 {
		t.Fatalf("Snapshot() len = %d, want 4", len(snap))
	}
	if snap[0].UserID != "user_A" || snap[3].UserID != "user_D" {
		t.Errorf("Snapshot() should follow roster order, got %s..%s", snap[0].UserID, snap[3].UserID)
	}

	snap[0].RiskScore = 99
	st, _ := s.Get("user_A")
	if st.RiskScore != 0 {
		t.Errorf("mutating a snapshot leaked into the store: risk = %v", st.RiskScore)
	}
}

func TestStore_ApplyAndAggregate(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.Apply(func(tx *Tx) error {
		a, _ := tx.Get("user_A")
		a.RiskScore = 12
		b, _ := tx.Get("user_B")
		b.RiskScore = 4

		avg, maxRisk := tx.Aggregate()
		if avg != 4 {
			t.Errorf("Aggregate() avg = %v, want 4", avg)
		}
		if maxRisk != 12 {
			t.Errorf("Aggregate() max = %v, want 12", maxRisk)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	st, ok := s.Get("user_A")
	if !ok || st.RiskScore != 12 {
		t.Errorf("Get(user_A) = %+v, %v", st, ok)
	}
}

func TestStore_ApplyReturnsError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	want := errors.New("boom")
	if err := s.Apply(func(*Tx) error { return want }); !errors.Is(err, want) {
		t.Errorf("Apply() error = %v, want %v", err, want)
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_ = s.Apply(func(tx *Tx) error {
		tx.Each(func(st *models.UserRiskState) {
			st.RiskScore = 7
			st.SecurityScore = 3
			st.Status = models.StatusLocked
		})
		return nil
	})

	s.Reset()
	for _, st := range s.Snapshot() {
		if st.RiskScore != 0 || st.SecurityScore != 0 || st.Status != models.StatusActive {
			t.Errorf("user %s not reset: %+v", st.UserID, st)
		}
		if st.Role == "" {
			t.Errorf("user %s lost its role on reset", st.UserID)
		}
	}
}

func TestStore_Restore(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	n := s.Restore([]models.UserRiskState{
		{UserID: "user_A", RiskScore: 9, SecurityScore: 2, Status: models.StatusLocked},
		{UserID: "user_B", RiskScore: -3},
		{UserID: "ghost", RiskScore: 50},
	})
	if n != 2 {
		t.Errorf("Restore() = %d, want 2", n)
	}

	a, _ := s.Get("user_A")
	if a.RiskScore != 9 || a.Status != models.StatusLocked {
		t.Errorf("user_A = %+v", a)
	}
	b, _ := s.Get("user_B")
	if b.RiskScore != 0 {
		t.Errorf("negative restored score should clamp to 0, got %v", b.RiskScore)
	}
	if s.Known("ghost") {
		t.Error("Restore must not create users")
	}
}

func TestStore_ConcurrentApplyAndSnapshot(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Apply(func(tx *Tx) error {
					a, _ := tx.Get("user_A")
					a.RiskScore++
					a.SecurityScore++
					return nil
				})
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			for _, st := range s.Snapshot() {
				if st.UserID == "user_A" && st.RiskScore != st.SecurityScore {
					t.Errorf("snapshot observed a partial update: %+v", st)
				}
			}
		}
	}()

	wg.Wait()

	a, _ := s.Get("user_A")
	if a.RiskScore != 800 {
		t.Errorf("RiskScore = %v, want 800", a.RiskScore)
	}
}

func TestStore_UserLookup(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	u, ok := s.User("user_D")
	if !ok || u.Role != "admin" {
		t.Errorf("User(user_D) = %+v, %v", u, ok)
	}
	if _, ok := s.User("nobody"); ok {
		t.Error("User(nobody) should not be found")
	}
	if got := len(s.Users()); got != 4 {
		t.Errorf("Users() len = %d", got)
	}
}
