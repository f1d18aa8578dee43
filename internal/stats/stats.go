// Package stats tracks process-wide fraud analysis counters.
//
// The tracker is the only shared mutable state in the analysis pipeline.
// It is an injectable component rather than a package global, so tests
// can instantiate isolated trackers.
package stats

import (
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// flaggedThreshold is the score above which an analysis counts as flagged,
// independent of the block decision.
const flaggedThreshold = 0.3

// Tracker holds running counters for the process lifetime. No history is
// retained and nothing survives a restart.
type Tracker struct {
	mu             sync.RWMutex
	total          int64
	flagged        int64
	blocked        int64
	lastAnalysisAt time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record updates the counters for one finalized analysis. Safe for
// concurrent use; increments are serialized so none are lost.
func (t *Tracker) Record(analysis *domain.Analysis) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if analysis.FraudScore > flaggedThreshold {
		t.flagged++
	}
	if analysis.IsFraud {
		t.blocked++
	}
	t.lastAnalysisAt = time.Now().UTC()
}

// Snapshot returns a consistent copy of the counters.
func (t *Tracker) Snapshot() domain.Statistics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return domain.Statistics{
		TotalTransactions:   t.total,
		FlaggedTransactions: t.flagged,
		BlockedTransactions: t.blocked,
		LastAnalysisTime:    t.lastAnalysisAt,
	}
}

// FraudRatePercentage returns 100 * blocked / total, or 0 when nothing
// has been analyzed yet.
func (t *Tracker) FraudRatePercentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.total == 0 {
		return 0.0
	}
	return 100.0 * float64(t.blocked) / float64(t.total)
}
