// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package source

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// Source modes, also used as the metrics label.
const (
	ModeReplay     = "replay"
	ModeSimulation = "simulation"
)

// Source yields events one at a time. Every event returned by Next must be
// passed to Commit once the engine has consumed it, accepted or not.
type Source interface {
	Next(ctx context.Context) (*models.Event, error)
	Commit(ctx context.Context, ev *models.Event) error
}

// RandFunc returns a uniformly distributed value in [0, 1).
type RandFunc func() float64

// NewRand returns a goroutine-safe RandFunc. A zero seed uses the clock.
func NewRand(seed int64) RandFunc {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	var mu sync.Mutex
	return func() float64 {
		mu.Lock()
		defer mu.Unlock()
		return r.Float64()
	}
}

// pick returns an index in [0, n) drawn from rnd.
func pick(rnd RandFunc, n int) int {
	i := int(rnd() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
