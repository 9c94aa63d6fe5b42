// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package classifier

import (
	"context"
	"testing"
)

func TestLexiconScorer_Polarity(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		sign int // -1 negative, 0 neutral, 1 positive
	}{
		{"positive praise", "Great work on the project! Really impressed with the progress.", 1},
		{"positive thanks", "Thanks for your help today, I really appreciate it.", 1},
		{"neutral schedule", "Meeting scheduled for 3 PM tomorrow.", 0},
		{"neutral request", "Please review the document and provide feedback.", 0},
		{"negative frustration", "I'm really frustrated with how things are going here.", -1},
		{"negative unacceptable", "This is unacceptable, I can't work under these conditions.", -1},
		{"negated positive", "The management doesn't care about us at all.", -1},
		{"negation window", "I'm done with this place, nothing ever works properly.", -1},
		{"negative hate", "I hate dealing with these constant problems.", -1},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scorer.Polarity(ctx, tt.text)
			if err != nil {
				t.Fatalf("Polarity() error = %v", err)
			}
			if got < -1 || got > 1 {
				t.Fatalf("Polarity() = %v, out of [-1, 1]", got)
			}
			switch tt.sign {
			case -1:
				if got >= 0 {
					t.Errorf("Polarity(%q) = %v, want negative", tt.text, got)
				}
			case 0:
				if got != 0 {
					t.Errorf("Polarity(%q) = %v, want 0", tt.text, got)
				}
			case 1:
				if got <= 0 {
					t.Errorf("Polarity(%q) = %v, want positive", tt.text, got)
				}
			}
		})
	}
}

func TestLexiconScorer_ExtraWords(t *testing.T) {
	t.Parallel()

	scorer := NewLexiconScorer(map[string]float64{"Exfiltrate": -5})
	got, err := scorer.Polarity(context.Background(), "time to exfiltrate")
	if err != nil {
		t.Fatalf("Polarity() error = %v", err)
	}
	if got != -1 {
		t.Errorf("Polarity() = %v, want clamped -1", got)
	}
}

func TestLexiconScorer_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewLexiconScorer(nil).Polarity(ctx, "great"); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestPolarityFunc(t *testing.T) {
	t.Parallel()

	var f SentimentClassifier = PolarityFunc(func(context.Context, string) (float64, error) {
		return -0.5, nil
	})
	got, _ := f.Polarity(context.Background(), "anything")
	if got != -0.5 {
		t.Errorf("Polarity() = %v, want -0.5", got)
	}
}
