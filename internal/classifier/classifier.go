// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package classifier

import (
	"context"
)

// Sample is the feature vector fed to the anomaly model: the user's risk,
// the mean risk and the maximum risk across all users at the same instant.
type Sample struct {
	UserRisk float64 `json:"user_risk"`
	AvgRisk  float64 `json:"avg_risk"`
	MaxRisk  float64 `json:"max_risk"`
}

// Vector returns the sample as a slice in a fixed order.
func (s Sample) Vector() []float64 {
	return []float64{s.UserRisk, s.AvgRisk, s.MaxRisk}
}

// Predictor flags a feature vector as anomalous.
type Predictor interface {
	Predict(ctx context.Context, s Sample) (bool, error)
}

// Trainer fits a model to a feature history.
type Trainer interface {
	Train(ctx context.Context, history []Sample) error
}

// AnomalyClassifier is a trainable anomaly model. IsReady reports whether
// the model has been trained on at least its minimum sample count.
type AnomalyClassifier interface {
	Predictor
	Trainer
	IsReady() bool
}

// SentimentClassifier scores free text with a polarity in [-1, 1].
type SentimentClassifier interface {
	Polarity(ctx context.Context, text string) (float64, error)
}

// PolarityFunc adapts a function to SentimentClassifier.
type PolarityFunc func(ctx context.Context, text string) (float64, error)

// Polarity calls f.
func (f PolarityFunc) Polarity(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}

// clamp bounds v to [-1, 1].
func clamp(v float64) float64 {
	switch {
	case v < -1:
		return -1
	case v > 1:
		return 1
	default:
		return v
	}
}
