package signals

import (
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signal contributions for time-of-day checks.
const (
	unusualHourContribution = 0.4
	weekendContribution     = 0.2
)

// TimeEvaluator analyzes transaction timing. Only one branch fires per
// call: unusual hour, then weekend, then neutral.
type TimeEvaluator struct{}

// Evaluate returns the time-pattern signal verdict for the given
// transaction time. The weekend branch records a minor risk factor
// without marking the transaction suspicious.
func (TimeEvaluator) Evaluate(_ *domain.Transaction, _ []domain.HistoryRecord, patterns *domain.PatternConfig, at time.Time) domain.Verdict {
	hour := at.Hour()

	if patterns.IsUnusualHour(hour) {
		return domain.Verdict{
			Contribution: unusualHourContribution,
			Suspicious:   true,
			Reason:       fmt.Sprintf("Transaction at unusual hour: %d:00", hour),
		}
	}

	if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return domain.Verdict{
			Contribution: weekendContribution,
			Reason:       "Weekend transaction (minor risk factor)",
		}
	}

	return domain.Verdict{Reason: "Transaction timing appears normal"}
}
