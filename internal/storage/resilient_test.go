// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// flakyStore fails every call while failing is set.
type flakyStore struct {
	*MemoryStore
	mu      sync.Mutex
	failing bool
	calls   int
}

var errBackendDown = errors.New("backend down")

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore()}
}

func (f *flakyStore) setFailing(v bool) {
	f.mu.Lock()
	f.failing = v
	f.mu.Unlock()
}

func (f *flakyStore) check() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failing {
		return errBackendDown
	}
	return nil
}

func (f *flakyStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyStore) AppendEvent(ctx context.Context, ev *models.Event) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.MemoryStore.AppendEvent(ctx, ev)
}

func (f *flakyStore) NextUnprocessedEvent(ctx context.Context) (*models.Event, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return f.MemoryStore.NextUnprocessedEvent(ctx)
}

func (f *flakyStore) Ping(ctx context.Context) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.MemoryStore.Ping(ctx)
}

func TestResilientStore_PassesThrough(t *testing.T) {
	inner := newFlakyStore()
	r := NewResilientStore(inner, ResilientConfig{Name: "test-pass"})
	ctx := context.Background()

	if err := r.AppendEvent(ctx, testEvent("e1", "user_A", "normal", 0)); err != nil {
		t.Fatalf("AppendEvent failed: %v", err)
	}
	ev, err := r.NextUnprocessedEvent(ctx)
	if err != nil {
		t.Fatalf("NextUnprocessedEvent failed: %v", err)
	}
	if ev == nil || ev.ID != "e1" {
		t.Fatalf("expected e1, got %+v", ev)
	}
	if r.State() != "closed" {
		t.Errorf("State = %s, want closed", r.State())
	}
}

func TestResilientStore_EmptyQueueIsNil(t *testing.T) {
	r := NewResilientStore(NewMemoryStore(), ResilientConfig{Name: "test-empty"})
	ev, err := r.NextUnprocessedEvent(context.Background())
	if err != nil {
		t.Fatalf("NextUnprocessedEvent failed: %v", err)
	}
	if ev != nil {
		t.Errorf("expected nil event, got %+v", ev)
	}
}

func TestResilientStore_WrapsFailures(t *testing.T) {
	inner := newFlakyStore()
	inner.setFailing(true)
	r := NewResilientStore(inner, ResilientConfig{Name: "test-wrap", FailureThreshold: 5})

	_, err := r.NextUnprocessedEvent(context.Background())
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
	if !errors.Is(err, errBackendDown) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}

func TestResilientStore_OpensAndRecovers(t *testing.T) {
	inner := newFlakyStore()
	inner.setFailing(true)
	r := NewResilientStore(inner, ResilientConfig{
		Name:             "test-open",
		FailureThreshold: 2,
		Timeout:          50 * time.Millisecond,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := r.Ping(ctx); err == nil {
			t.Fatal("expected failure")
		}
	}
	if r.State() != "open" {
		t.Fatalf("State = %s, want open", r.State())
	}
	if r.Available() {
		t.Error("Available() = true with open breaker")
	}

	// Open breaker rejects without reaching the backend.
	before := inner.callCount()
	err := r.Ping(ctx)
	if !errors.Is(err, models.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
	if inner.callCount() != before {
		t.Error("open breaker should not call the backend")
	}

	inner.setFailing(false)
	time.Sleep(80 * time.Millisecond)

	if err := r.Ping(ctx); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if r.State() != "closed" {
		t.Errorf("State = %s, want closed after recovery", r.State())
	}
}

func TestResilientStore_CanceledContextDoesNotTrip(t *testing.T) {
	r := NewResilientStore(NewMemoryStore(), ResilientConfig{Name: "test-cancel", FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Ping(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, models.ErrStorageUnavailable) {
		t.Error("cancellation should not be reported as unavailable")
	}
	if r.State() != "closed" {
		t.Errorf("State = %s, want closed", r.State())
	}
}
