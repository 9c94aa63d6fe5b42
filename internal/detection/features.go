// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import "github.com/tomtom215/insiderwatch/internal/classifier"

// FeatureHistory is a bounded ring of feature samples. Once full, each Add
// overwrites the oldest sample. It is not safe for concurrent use; the
// engine only touches it inside a state.Store critical section.
type FeatureHistory struct {
	buf   []classifier.Sample
	start int
	n     int
}

// NewFeatureHistory creates a history holding at most capacity samples.
func NewFeatureHistory(capacity int) *FeatureHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &FeatureHistory{buf: make([]classifier.Sample, capacity)}
}

// Add appends s, evicting the oldest sample when full.
func (h *FeatureHistory) Add(s classifier.Sample) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of samples held.
func (h *FeatureHistory) Len() int {
	return h.n
}

// Cap returns the capacity.
func (h *FeatureHistory) Cap() int {
	return len(h.buf)
}

// Snapshot returns a copy of the samples, oldest first.
func (h *FeatureHistory) Snapshot() []classifier.Sample {
	out := make([]classifier.Sample, h.n)
	for i := 0; i < h.n; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

// Reset drops every sample.
func (h *FeatureHistory) Reset() {
	h.start = 0
	h.n = 0
}
