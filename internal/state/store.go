// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package state owns the per-user risk ledger.
//
// All mutation goes through Store.Apply, which holds a single lock for the
// duration of the callback. The tick and decay loops both mutate through it,
// so one tick is atomic with respect to decay and to other ticks. Readers use
// Snapshot, which returns deep copies taken under the same lock.
package state

import (
	"fmt"
	"sync"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// Store is the mutex-guarded set of UserRiskState values. The roster is fixed
// at construction; users are never added or removed afterwards.
type Store struct {
	users  []models.User
	known  map[string]int // user ID -> index into users, read-only after New
	mu     sync.Mutex
	states map[string]*models.UserRiskState
}

// NewStore creates a store with every user in its initial state.
func NewStore(users []models.User) (*Store, error) {
	if len(users) == 0 {
		return nil, models.ErrNoUsers
	}

	s := &Store{
		users:  make([]models.User, 0, len(users)),
		known:  make(map[string]int, len(users)),
		states: make(map[string]*models.UserRiskState, len(users)),
	}
	for _, u := range users {
		if u.ID == "" {
			return nil, fmt.Errorf("%w: user with empty id", models.ErrNoUsers)
		}
		if _, dup := s.known[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %q", u.ID)
		}
		s.known[u.ID] = len(s.users)
		s.users = append(s.users, u)
		st := models.NewUserRiskState(u)
		s.states[u.ID] = &st
	}
	return s, nil
}

// Known reports whether id is in the roster.
func (s *Store) Known(id string) bool {
	_, ok := s.known[id]
	return ok
}

// User returns the roster entry for id.
func (s *Store) User(id string) (models.User, bool) {
	i, ok := s.known[id]
	if !ok {
		return models.User{}, false
	}
	return s.users[i], true
}

// Users returns the roster in configuration order.
func (s *Store) Users() []models.User {
	out := make([]models.User, len(s.users))
	copy(out, s.users)
	return out
}

// Apply runs fn with exclusive access to every state. Changes made through
// tx are visible to other callers only after fn returns.
func (s *Store) Apply(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{s: s})
}

// Snapshot returns a consistent copy of every state in roster order.
func (s *Store) Snapshot() []models.UserRiskState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.UserRiskState, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *s.states[u.ID])
	}
	return out
}

// Get returns a copy of one user's state.
func (s *Store) Get(id string) (models.UserRiskState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return models.UserRiskState{}, false
	}
	return *st, true
}

// Reset returns every user to the initial state and unlocks all accounts.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		st := models.NewUserRiskState(u)
		s.states[u.ID] = &st
	}
}

// Restore loads previously saved states. Entries for users outside the
// roster are skipped. Negative scores are clamped to 0. It returns the number
// of users restored.
func (s *Store) Restore(saved []models.UserRiskState) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, in := range saved {
		st, ok := s.states[in.UserID]
		if !ok {
			continue
		}
		st.RiskScore = max(0, in.RiskScore)
		st.SecurityScore = max(0, in.SecurityScore)
		st.LastActivityAt = in.LastActivityAt
		st.Incidents = in.Incidents
		st.Status = models.StatusActive
		if in.Status == models.StatusLocked {
			st.Status = models.StatusLocked
		}
		n++
	}
	return n
}

// Tx is the view handed to Apply callbacks. It must not escape the callback.
type Tx struct {
	s *Store
}

// Get returns the live state for id.
func (tx *Tx) Get(id string) (*models.UserRiskState, bool) {
	st, ok := tx.s.states[id]
	return st, ok
}

// Each visits every state in roster order.
func (tx *Tx) Each(fn func(st *models.UserRiskState)) {
	for _, u := range tx.s.users {
		fn(tx.s.states[u.ID])
	}
}

// Aggregate returns the mean and maximum risk across all users.
func (tx *Tx) Aggregate() (avg, maxRisk float64) {
	var sum float64
	for _, st := range tx.s.states {
		sum += st.RiskScore
		if st.RiskScore > maxRisk {
			maxRisk = st.RiskScore
		}
	}
	return sum / float64(len(tx.s.states)), maxRisk
}
