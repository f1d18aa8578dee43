// Package signals implements the built-in fraud signal evaluators.
//
// Each evaluator is a stateless, pure function of the transaction, the
// account's history, the active pattern config, and the transaction time.
// Evaluators never fail; malformed input degrades to a neutral verdict.
package signals

import (
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Evaluator produces a verdict for one independent fraud signal.
type Evaluator interface {
	Evaluate(tx *domain.Transaction, history []domain.HistoryRecord, patterns *domain.PatternConfig, at time.Time) domain.Verdict
}
