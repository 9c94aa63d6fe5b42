// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package classifier

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/tomtom215/insiderwatch/internal/models"
)

// minStdDev keeps z-scores finite when a dimension never varied in training.
const minStdDev = 1e-6

// ZScoreConfig configures a ZScoreModel.
type ZScoreConfig struct {
	// MinSamples is the smallest history Train accepts.
	MinSamples int

	// Contamination is the expected share of anomalies in the history, in (0, 0.5].
	Contamination float64
}

// DefaultZScoreConfig returns the stock settings.
func DefaultZScoreConfig() ZScoreConfig {
	return ZScoreConfig{
		MinSamples:    10,
		Contamination: 0.1,
	}
}

// zscoreParams is an immutable trained model.
type zscoreParams struct {
	mean      [3]float64
	std       [3]float64
	threshold float64
	samples   int
}

// ZScoreModel flags samples whose largest per-dimension z-score exceeds a
// threshold learned from the training history. Train swaps in a new model
// atomically, so Predict never observes a half-trained state.
type ZScoreModel struct {
	config ZScoreConfig
	params atomic.Pointer[zscoreParams]
}

// NewZScoreModel creates an untrained model.
func NewZScoreModel(config ZScoreConfig) *ZScoreModel {
	if config.MinSamples <= 0 {
		config.MinSamples = DefaultZScoreConfig().MinSamples
	}
	if config.Contamination <= 0 || config.Contamination > 0.5 {
		config.Contamination = DefaultZScoreConfig().Contamination
	}
	return &ZScoreModel{config: config}
}

// IsReady reports whether the model has been trained.
func (m *ZScoreModel) IsReady() bool {
	return m.params.Load() != nil
}

// TrainedOn returns the size of the history behind the current model.
func (m *ZScoreModel) TrainedOn() int {
	if p := m.params.Load(); p != nil {
		return p.samples
	}
	return 0
}

// Train fits the model. A history shorter than MinSamples is rejected and
// leaves any previous model in place.
func (m *ZScoreModel) Train(ctx context.Context, history []Sample) error {
	if len(history) < m.config.MinSamples {
		return fmt.Errorf("%w: %d samples, need %d", models.ErrClassifierUnavailable, len(history), m.config.MinSamples)
	}

	p := &zscoreParams{samples: len(history)}
	n := float64(len(history))

	for _, s := range history {
		v := s.Vector()
		for i := range p.mean {
			p.mean[i] += v[i]
		}
	}
	for i := range p.mean {
		p.mean[i] /= n
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, s := range history {
		v := s.Vector()
		for i := range p.std {
			d := v[i] - p.mean[i]
			p.std[i] += d * d
		}
	}
	for i := range p.std {
		p.std[i] = math.Max(math.Sqrt(p.std[i]/n), minStdDev)
	}

	scores := make([]float64, len(history))
	for i, s := range history {
		scores[i] = p.score(s)
	}
	sort.Float64s(scores)

	// Everything strictly above the (1 - contamination) quantile is anomalous.
	idx := int(math.Ceil((1-m.config.Contamination)*n)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	p.threshold = scores[idx]

	m.params.Store(p)
	return nil
}

// Predict reports whether s is an outlier. An untrained model returns
// ErrClassifierUnavailable.
func (m *ZScoreModel) Predict(ctx context.Context, s Sample) (bool, error) {
	p := m.params.Load()
	if p == nil {
		return false, models.ErrClassifierUnavailable
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.score(s) > p.threshold, nil
}

// score is the largest absolute z-score across the three dimensions.
func (p *zscoreParams) score(s Sample) float64 {
	v := s.Vector()
	best := 0.0
	for i := range p.mean {
		z := math.Abs(v[i]-p.mean[i]) / p.std[i]
		if z > best {
			best = z
		}
	}
	return best
}
