// Package analyzer implements the fraud risk aggregation engine: it runs
// the signal evaluators, merges their verdicts into one normalized score,
// and applies the decision threshold.
package analyzer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/signals"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// ModelSignal is the model-backed evaluator consumed by the analyzer.
// Satisfied by *model.Interpreter; swappable in tests.
type ModelSignal interface {
	Evaluate(ctx context.Context, tx *domain.Transaction, history []domain.HistoryRecord) domain.Verdict
}

// settings is the runtime-swappable part of the analyzer: the decision
// threshold and the pattern snapshot. Evaluations load one settings
// pointer for their whole run, so a concurrent reconfiguration can never
// produce a mixed view.
type settings struct {
	threshold float64
	patterns  *domain.PatternConfig
}

// Analyzer ties the signal evaluators, model interpreter, aggregation
// rule, and decision policy together. One Analyzer serves all concurrent
// analysis calls; per-call state is never shared.
type Analyzer struct {
	current atomic.Pointer[settings]

	amount   signals.AmountEvaluator
	velocity signals.VelocityEvaluator
	timing   signals.TimeEvaluator
	model    ModelSignal

	tracker *stats.Tracker
	now     func() time.Time
}

// New creates an analyzer with the given threshold, pattern snapshot,
// model signal, and stats tracker.
func New(threshold float64, patterns *domain.PatternConfig, modelSignal ModelSignal, tracker *stats.Tracker) (*Analyzer, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("fraud threshold must be in [0,1], got %f", threshold)
	}
	if patterns == nil {
		patterns = domain.DefaultPatternConfig()
	}
	if err := patterns.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pattern config: %w", err)
	}
	if modelSignal == nil {
		return nil, fmt.Errorf("model signal is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("stats tracker is required")
	}

	a := &Analyzer{
		model:   modelSignal,
		tracker: tracker,
		now:     time.Now,
	}
	a.current.Store(&settings{threshold: threshold, patterns: patterns.Clone()})
	return a, nil
}

// AnalyzeTransaction runs the full aggregation pipeline for one
// transaction. It never fails: the worst-case output is a low-confidence
// ALLOW verdict when every signal is neutral and the model is unavailable.
//
// Indicator order is a contract: amount, velocity, time, model.
func (a *Analyzer) AnalyzeTransaction(ctx context.Context, tx *domain.Transaction, history []domain.HistoryRecord) *domain.Analysis {
	s := a.current.Load()

	at := tx.Timestamp
	if at.IsZero() {
		at = a.now()
	}
	at = at.UTC()

	// The model call is the only signal that may block on the network;
	// overlap it with the local evaluators.
	modelCh := make(chan domain.Verdict, 1)
	go func() {
		modelCh <- a.model.Evaluate(ctx, tx, history)
	}()

	verdicts := []domain.Verdict{
		a.amount.Evaluate(tx, history, s.patterns, at),
		a.velocity.Evaluate(tx, history, s.patterns, at),
		a.timing.Evaluate(tx, history, s.patterns, at),
		<-modelCh,
	}

	score, indicators := aggregate(verdicts)

	isFraud := score >= s.threshold
	recommendation := domain.RecommendationAllow
	if isFraud {
		recommendation = domain.RecommendationBlock
	}

	analysis := &domain.Analysis{
		ID:             uuid.New().String(),
		IsFraud:        isFraud,
		FraudScore:     score,
		Indicators:     indicators,
		AnalyzedAt:     at,
		ThresholdUsed:  s.threshold,
		Recommendation: recommendation,
		ModelText:      verdicts[3].ModelText,
	}

	a.tracker.Record(analysis)
	return analysis
}

// Threshold returns the active decision threshold.
func (a *Analyzer) Threshold() float64 {
	return a.current.Load().threshold
}

// Patterns returns the active pattern snapshot. Callers must treat it as
// read-only.
func (a *Analyzer) Patterns() *domain.PatternConfig {
	return a.current.Load().patterns
}

// UpdatePatterns validates the candidate config and atomically swaps in a
// new snapshot, returning the applied copy. Concurrent evaluations keep
// the snapshot they started with.
func (a *Analyzer) UpdatePatterns(patterns *domain.PatternConfig) (*domain.PatternConfig, error) {
	if patterns == nil {
		return nil, fmt.Errorf("pattern config is required")
	}
	if err := patterns.Validate(); err != nil {
		return nil, err
	}

	applied := patterns.Clone()
	for {
		old := a.current.Load()
		next := &settings{threshold: old.threshold, patterns: applied}
		if a.current.CompareAndSwap(old, next) {
			return applied, nil
		}
	}
}

// UpdateThreshold validates and atomically applies a new decision
// threshold.
func (a *Analyzer) UpdateThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("fraud threshold must be in [0,1], got %f", threshold)
	}

	for {
		old := a.current.Load()
		next := &settings{threshold: threshold, patterns: old.patterns}
		if a.current.CompareAndSwap(old, next) {
			return nil
		}
	}
}
