// InsiderWatch - Insider Threat Risk Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insiderwatch

package classifier

import (
	"context"
	"strings"
	"unicode"
)

// negationWindow is how many tokens a negator reaches forward.
const negationWindow = 3

// intensifierBoost scales the next sentiment word after an intensifier.
const intensifierBoost = 1.3

var defaultLexicon = map[string]float64{
	// positive
	"great": 0.8, "excellent": 1.0, "good": 0.7, "well": 0.3, "impressed": 0.6,
	"thanks": 0.5, "thank": 0.5, "appreciate": 0.6, "help": 0.2, "helpful": 0.5,
	"clear": 0.2, "organized": 0.3, "happy": 0.8, "glad": 0.5, "love": 0.6,
	"progress": 0.3, "collaborating": 0.3, "enjoy": 0.5, "success": 0.6, "nice": 0.6,
	"care": 0.3, "properly": 0.2, "fine": 0.4, "perfect": 1.0,

	// negative
	"frustrated": -0.7, "unacceptable": -0.8, "hate": -0.9, "disaster": -0.9,
	"waste": -0.6, "fed": -0.5, "unnecessary": -0.4, "difficult": -0.5,
	"problems": -0.4, "problem": -0.4, "nowhere": -0.3, "leaving": -0.4,
	"quit": -0.5, "done": -0.3, "angry": -0.8, "terrible": -1.0, "awful": -1.0,
	"bad": -0.7, "worst": -1.0, "unfair": -0.6, "stupid": -0.8, "useless": -0.7,
	"revenge": -0.9, "resent": -0.7, "furious": -0.9, "annoyed": -0.5, "sick": -0.5,
}

var negators = map[string]bool{
	"not": true, "no": true, "never": true, "nothing": true, "cannot": true,
	"don't": true, "doesn't": true, "didn't": true, "can't": true, "won't": true,
	"isn't": true, "wasn't": true, "aren't": true, "shouldn't": true,
}

var intensifiers = map[string]bool{
	"really": true, "very": true, "so": true, "seriously": true, "completely": true,
	"complete": true, "totally": true, "extremely": true, "absolutely": true,
}

// LexiconScorer is a dictionary sentiment classifier. The polarity of a text
// is the mean score of its sentiment-bearing words, clamped to [-1, 1].
type LexiconScorer struct {
	lexicon map[string]float64
}

// NewLexiconScorer returns a scorer over the built-in word list, extended or
// overridden by extra.
func NewLexiconScorer(extra map[string]float64) *LexiconScorer {
	lex := make(map[string]float64, len(defaultLexicon)+len(extra))
	for k, v := range defaultLexicon {
		lex[k] = v
	}
	for k, v := range extra {
		lex[strings.ToLower(k)] = clamp(v)
	}
	return &LexiconScorer{lexicon: lex}
}

// Polarity scores text. Text with no sentiment words scores 0.
func (l *LexiconScorer) Polarity(ctx context.Context, text string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tokens := tokenize(text)
	var (
		sum       float64
		scored    int
		negateFor int
		boost     = 1.0
	)

	for _, tok := range tokens {
		if negators[tok] {
			negateFor = negationWindow
			continue
		}
		if intensifiers[tok] {
			boost = intensifierBoost
			continue
		}

		if v, ok := l.lexicon[tok]; ok {
			v *= boost
			if negateFor > 0 {
				v = -v
				negateFor = 0
			}
			sum += clamp(v)
			scored++
			boost = 1.0
			continue
		}

		if negateFor > 0 {
			negateFor--
		}
	}

	if scored == 0 {
		return 0, nil
	}
	return clamp(sum / float64(scored)), nil
}

// tokenize lowercases text and splits it into words, keeping apostrophes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
