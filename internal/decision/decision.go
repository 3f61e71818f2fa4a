// Package decision fuses the pipeline's probability signals into the
// final 0-100 risk score and maps it onto a disposition.
package decision

import "errors"

// Dispositions, ordered by severity.
const (
	Pass   = "PASS"
	Review = "REVIEW"
	Hold   = "HOLD"
)

// Default thresholds, overridable per tenant via the configs table.
const (
	DefaultHoldThreshold   = 80.0
	DefaultReviewThreshold = 50.0
)

// ErrInvalidThresholds is returned when the hold threshold is below the
// review threshold.
var ErrInvalidThresholds = errors.New("hold threshold must be >= review threshold")

// FuseScores combines the duplicate, anomaly and text signals into a
// 0-100 score. A bank change forces the score to at least 80.
func FuseScores(dupProb, anomProb float64, bankChange bool, textDupProb float64) float64 {
	dupComponent := 0.7 * dupProb
	textComponent := 0.2 * maxFloat(dupProb, textDupProb)
	anomalyComponent := 0.1 * anomProb
	score := (dupComponent + textComponent + anomalyComponent) * 100

	if bankChange {
		score = minFloat(100, score+15)
		score = maxFloat(score, 80)
	}

	return maxFloat(0, minFloat(score, 100))
}

// Decide maps a score onto HOLD/REVIEW/PASS given the two thresholds.
func Decide(score, reviewThreshold, holdThreshold float64) (string, error) {
	if holdThreshold < reviewThreshold {
		return "", ErrInvalidThresholds
	}
	switch {
	case score >= holdThreshold:
		return Hold, nil
	case score >= reviewThreshold:
		return Review, nil
	default:
		return Pass, nil
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
