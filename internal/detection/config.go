// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package detection

import (
	"time"

	"github.com/tomtom215/insiderwatch/internal/config"
)

// Config holds the scoring constants.
type Config struct {
	IncidentThreshold float64 `json:"incident_threshold"`
	RiskLow           float64 `json:"risk_low"`
	RiskMedium        float64 `json:"risk_medium"`

	AnomalyPenalty       float64 `json:"anomaly_penalty"`
	AnomalyMinSamples    int     `json:"anomaly_min_samples"`
	AnomalyContamination float64 `json:"anomaly_contamination"`
	RetrainInterval      int     `json:"retrain_interval"`
	FeatureHistorySize   int     `json:"feature_history_size"`

	SentimentProbability       float64 `json:"sentiment_probability"`
	SentimentPenalty           float64 `json:"sentiment_penalty"`
	NegativeSentimentThreshold float64 `json:"negative_sentiment_threshold"`

	PointsNormal            float64 `json:"points_normal"`
	PointsLowRisk           float64 `json:"points_low_risk"`
	LowRiskBonus            float64 `json:"low_risk_bonus"`
	LowRiskBonusProbability float64 `json:"low_risk_bonus_probability"`

	DecayAmount float64 `json:"decay_amount"`
	DecayPoints float64 `json:"decay_points"`

	// ClassifierTimeout bounds each classifier call.
	ClassifierTimeout time.Duration `json:"classifier_timeout"`

	// NotifyTimeout bounds each notifier delivery.
	NotifyTimeout time.Duration `json:"notify_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		IncidentThreshold:          20,
		RiskLow:                    5,
		RiskMedium:                 15,
		AnomalyPenalty:             8,
		AnomalyMinSamples:          10,
		AnomalyContamination:       0.1,
		RetrainInterval:            50,
		FeatureHistorySize:         5000,
		SentimentProbability:       0.3,
		SentimentPenalty:           6,
		NegativeSentimentThreshold: 0,
		PointsNormal:               1,
		PointsLowRisk:              0.5,
		LowRiskBonus:               0.5,
		LowRiskBonusProbability:    0.1,
		DecayAmount:                1,
		DecayPoints:                0.5,
		ClassifierTimeout:          250 * time.Millisecond,
		NotifyTimeout:              10 * time.Second,
	}
}

// FromSettings builds a Config from the loaded engine and scheduler sections.
func FromSettings(eng config.EngineConfig, sch config.SchedulerConfig) Config {
	c := DefaultConfig()
	c.IncidentThreshold = eng.IncidentThreshold
	c.RiskLow = eng.RiskLow
	c.RiskMedium = eng.RiskMedium
	c.AnomalyPenalty = eng.AnomalyPenalty
	c.AnomalyMinSamples = eng.AnomalyMinSamples
	c.AnomalyContamination = eng.AnomalyContamination
	c.RetrainInterval = eng.RetrainInterval
	c.FeatureHistorySize = eng.FeatureHistorySize
	c.SentimentProbability = eng.SentimentProbability
	c.SentimentPenalty = eng.SentimentPenalty
	c.NegativeSentimentThreshold = eng.NegativeSentimentThreshold
	c.PointsNormal = eng.PointsNormal
	c.PointsLowRisk = eng.PointsLowRisk
	c.LowRiskBonus = eng.LowRiskBonus
	c.LowRiskBonusProbability = eng.LowRiskBonusProbability
	c.DecayAmount = sch.DecayAmount
	c.DecayPoints = sch.DecayPoints
	if eng.ClassifierTimeout > 0 {
		c.ClassifierTimeout = eng.ClassifierTimeout
	}
	return c
}

// normalized fills values that would break the pipeline.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.IncidentThreshold <= 0 {
		c.IncidentThreshold = d.IncidentThreshold
	}
	if c.AnomalyMinSamples <= 0 {
		c.AnomalyMinSamples = d.AnomalyMinSamples
	}
	if c.RetrainInterval <= 0 {
		c.RetrainInterval = d.RetrainInterval
	}
	if c.FeatureHistorySize < c.AnomalyMinSamples {
		c.FeatureHistorySize = c.AnomalyMinSamples
	}
	if c.ClassifierTimeout <= 0 {
		c.ClassifierTimeout = d.ClassifierTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = d.NotifyTimeout
	}
	if c.DecayAmount < 0 {
		c.DecayAmount = 0
	}
	return c
}
