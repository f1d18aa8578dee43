package analyzer

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// signalCount is the fixed divisor for score normalization. The pipeline
// always produces four verdicts: amount, velocity, time, model.
const signalCount = 4.0

// aggregate merges signal verdicts into one normalized score plus the
// reasons of every suspicious verdict, preserving evaluator order.
// The score is clamped to [0, 1]; out-of-range sums are clamped, never
// raised.
func aggregate(verdicts []domain.Verdict) (float64, []string) {
	var sum float64
	var indicators []string

	for _, v := range verdicts {
		sum += v.Contribution
		if v.Suspicious {
			indicators = append(indicators, v.Reason)
		}
	}

	score := sum / signalCount
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}

	return score, indicators
}
