// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

// Package classifier defines the anomaly and sentiment capabilities consumed
// by the detection engine, and ships a lightweight implementation of each.
//
// ZScoreModel is a statistical outlier model over the three-dimensional risk
// feature vector. Its decision threshold is the (1 - contamination) quantile
// of the training scores, so roughly that fraction of the training history is
// considered anomalous.
//
// LexiconScorer is a word-list sentiment scorer with negation and intensifier
// handling. Any SentimentClassifier backed by a real language model can take
// its place.
package classifier
