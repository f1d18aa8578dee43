package signals

import (
	"fmt"
	"math"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signal contributions for amount-based checks. Checks run in priority
// order; the first match wins.
const (
	highAmountContribution  = 0.8
	deviationContribution   = 0.6
	roundAmountContribution = 0.3
)

// deviationSampleSize bounds the history window used for the spending
// pattern baseline.
const deviationSampleSize = 30

// deviationSigmas is how many population standard deviations the amount
// must sit from the account mean before it is flagged.
const deviationSigmas = 3.0

// AmountEvaluator analyzes the transaction amount for suspicious patterns:
// unusually high amounts, deviation from the account's spending baseline,
// and known suspicious round values.
type AmountEvaluator struct{}

// Evaluate returns the amount signal verdict. Zero and negative amounts
// are valid input and flow through the same rules; an empty history skips
// the deviation check entirely.
func (AmountEvaluator) Evaluate(tx *domain.Transaction, history []domain.HistoryRecord, patterns *domain.PatternConfig, _ time.Time) domain.Verdict {
	amount := tx.Amount

	if amount > patterns.HighAmountThreshold {
		return domain.Verdict{
			Contribution: highAmountContribution,
			Suspicious:   true,
			Reason:       fmt.Sprintf("Unusually high transaction amount: $%.2f", amount),
		}
	}

	if len(history) > 0 {
		recent := history
		if len(recent) > deviationSampleSize {
			recent = recent[len(recent)-deviationSampleSize:]
		}

		mean, stddev := meanStddev(recent)
		if stddev > 0 && math.Abs(amount-mean) > deviationSigmas*stddev {
			return domain.Verdict{
				Contribution: deviationContribution,
				Suspicious:   true,
				Reason:       fmt.Sprintf("Amount $%.2f significantly deviates from account pattern (avg: $%.2f)", amount, mean),
			}
		}
	}

	if patterns.IsSuspiciousAmount(amount) {
		return domain.Verdict{
			Contribution: roundAmountContribution,
			Suspicious:   true,
			Reason:       fmt.Sprintf("Suspicious round amount: $%.2f", amount),
		}
	}

	return domain.Verdict{Reason: "Amount appears normal"}
}

// meanStddev computes the mean and population standard deviation of the
// record amounts.
func meanStddev(records []domain.HistoryRecord) (mean, stddev float64) {
	n := float64(len(records))

	var sum float64
	for _, r := range records {
		sum += r.Amount
	}
	mean = sum / n

	var sq float64
	for _, r := range records {
		d := r.Amount - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
