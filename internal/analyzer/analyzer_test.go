package analyzer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// stubModel returns a fixed verdict.
type stubModel struct {
	verdict domain.Verdict
}

func (s stubModel) Evaluate(ctx context.Context, tx *domain.Transaction, history []domain.HistoryRecord) domain.Verdict {
	return s.verdict
}

// weekdayAfternoon is a Wednesday 14:00 UTC, neutral for the time signal.
var weekdayAfternoon = time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC)

func newTestAnalyzer(t *testing.T, threshold float64, m ModelSignal) *Analyzer {
	t.Helper()
	if m == nil {
		m = model.NewInterpreter(nil, time.Second)
	}
	a, err := New(threshold, domain.DefaultPatternConfig(), m, stats.NewTracker())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return a
}

func TestAnalyzeHighAmountNoHistory(t *testing.T) {
	// 15000 with no history and fallback model:
	// amount 0.8 + velocity 0 + time 0 + fallback 0.6 = 1.4 / 4 = 0.35
	a := newTestAnalyzer(t, 0.7, nil)

	tx := &domain.Transaction{
		Amount:      15000,
		FromAccount: "1111111111",
		ToAccount:   "2222222222",
		Timestamp:   weekdayAfternoon,
	}

	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)

	if analysis.FraudScore != 0.35 {
		t.Errorf("score = %v, want 0.35", analysis.FraudScore)
	}
	if analysis.IsFraud {
		t.Error("0.35 < 0.7 must not be fraud")
	}
	if analysis.Recommendation != domain.RecommendationAllow {
		t.Errorf("recommendation = %s, want ALLOW", analysis.Recommendation)
	}
	if analysis.ThresholdUsed != 0.7 {
		t.Errorf("thresholdUsed = %v, want 0.7", analysis.ThresholdUsed)
	}
	if analysis.ID == "" {
		t.Error("expected analysis ID")
	}
}

func TestAnalyzeVeryHighAmountSameScore(t *testing.T) {
	// 50000 scores the same as 15000: contributions are categorical.
	a := newTestAnalyzer(t, 0.7, nil)

	tx := &domain.Transaction{Amount: 50000, Timestamp: weekdayAfternoon}
	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)

	if analysis.FraudScore != 0.35 {
		t.Errorf("score = %v, want 0.35", analysis.FraudScore)
	}
	if analysis.Recommendation != domain.RecommendationAllow {
		t.Errorf("recommendation = %s, want ALLOW", analysis.Recommendation)
	}
}

func TestThresholdBoundaryIsInclusive(t *testing.T) {
	// amount 0.8 + model 2.0 (clamped later) = 2.8 / 4 = 0.7 exactly
	m := stubModel{verdict: domain.Verdict{Contribution: 2.0, Suspicious: true, Reason: "model flagged"}}
	a := newTestAnalyzer(t, 0.7, m)

	tx := &domain.Transaction{Amount: 15000, Timestamp: weekdayAfternoon}
	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)

	if analysis.FraudScore != 0.7 {
		t.Fatalf("score = %v, want 0.7", analysis.FraudScore)
	}
	if !analysis.IsFraud {
		t.Error("score == threshold must be fraud")
	}
	if analysis.Recommendation != domain.RecommendationBlock {
		t.Errorf("recommendation = %s, want BLOCK", analysis.Recommendation)
	}
}

func TestScoreClampedToOne(t *testing.T) {
	m := stubModel{verdict: domain.Verdict{Contribution: 10, Suspicious: true, Reason: "model flagged"}}
	a := newTestAnalyzer(t, 0.7, m)

	tx := &domain.Transaction{Amount: 15000, Timestamp: weekdayAfternoon}
	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)

	if analysis.FraudScore != 1.0 {
		t.Errorf("score = %v, want clamp to 1.0", analysis.FraudScore)
	}
}

func TestIndicatorOrder(t *testing.T) {
	// All four signals suspicious: amount (round 100 via empty-stddev
	// path needs empty history, so use high amount), velocity (16+
	// records), time (3 AM), model (stub).
	m := stubModel{verdict: domain.Verdict{Contribution: 0.8, Suspicious: true, Reason: "model flagged"}}
	a := newTestAnalyzer(t, 0.99, m)

	history := make([]domain.HistoryRecord, 20)
	for i := range history {
		history[i] = domain.HistoryRecord{Amount: 100}
	}

	tx := &domain.Transaction{
		Amount:    15000,
		Timestamp: time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC),
	}

	analysis := a.AnalyzeTransaction(context.Background(), tx, history)

	if len(analysis.Indicators) != 4 {
		t.Fatalf("indicators = %v, want 4", analysis.Indicators)
	}

	wantOrder := []string{
		"high transaction amount",
		"High transaction velocity",
		"unusual hour",
		"model flagged",
	}
	for i, want := range wantOrder {
		if !strings.Contains(analysis.Indicators[i], want) {
			t.Errorf("indicator[%d] = %q, want substring %q", i, analysis.Indicators[i], want)
		}
	}
}

func TestWeekendContributesWithoutIndicator(t *testing.T) {
	a := newTestAnalyzer(t, 0.7, nil)

	// Sunday noon, typical amount: weekend adds 0.2, fallback adds 0.1.
	tx := &domain.Transaction{
		Amount:    42.50,
		Timestamp: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)

	want := (0.2 + 0.1) / 4
	if diff := analysis.FraudScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %v, want %v", analysis.FraudScore, want)
	}
	for _, ind := range analysis.Indicators {
		if strings.Contains(ind, "Weekend") {
			t.Errorf("weekend must not appear as indicator: %v", analysis.Indicators)
		}
	}
}

func TestModelTextRetained(t *testing.T) {
	m := stubModel{verdict: domain.Verdict{Reason: "Model analysis completed", ModelText: "NORMAL: fine"}}
	a := newTestAnalyzer(t, 0.7, m)

	analysis := a.AnalyzeTransaction(context.Background(), &domain.Transaction{Amount: 10, Timestamp: weekdayAfternoon}, nil)
	if analysis.ModelText != "NORMAL: fine" {
		t.Errorf("modelText = %q", analysis.ModelText)
	}
}

func TestNewValidation(t *testing.T) {
	tracker := stats.NewTracker()
	m := model.NewInterpreter(nil, time.Second)

	if _, err := New(1.5, nil, m, tracker); err == nil {
		t.Error("expected error for threshold > 1")
	}
	if _, err := New(-0.1, nil, m, tracker); err == nil {
		t.Error("expected error for negative threshold")
	}
	if _, err := New(0.7, &domain.PatternConfig{}, m, tracker); err == nil {
		t.Error("expected error for invalid patterns")
	}
	if _, err := New(0.7, nil, nil, tracker); err == nil {
		t.Error("expected error for nil model")
	}
	if _, err := New(0.7, nil, m, nil); err == nil {
		t.Error("expected error for nil tracker")
	}
}

func TestUpdatePatterns(t *testing.T) {
	a := newTestAnalyzer(t, 0.7, nil)

	t.Run("RejectsInvalid", func(t *testing.T) {
		if _, err := a.UpdatePatterns(&domain.PatternConfig{HighAmountThreshold: -1}); err == nil {
			t.Error("expected validation error")
		}
		// Active snapshot unchanged
		if a.Patterns().HighAmountThreshold != 10000 {
			t.Errorf("active config changed after rejected update")
		}
	})

	t.Run("AppliesValid", func(t *testing.T) {
		next := domain.DefaultPatternConfig()
		next.HighAmountThreshold = 20000

		applied, err := a.UpdatePatterns(next)
		if err != nil {
			t.Fatalf("UpdatePatterns() error: %v", err)
		}
		if applied.HighAmountThreshold != 20000 {
			t.Errorf("applied threshold = %v", applied.HighAmountThreshold)
		}
		if a.Patterns().HighAmountThreshold != 20000 {
			t.Errorf("active threshold = %v", a.Patterns().HighAmountThreshold)
		}

		// 15000 is no longer high under the new config
		tx := &domain.Transaction{Amount: 15000, Timestamp: weekdayAfternoon}
		analysis := a.AnalyzeTransaction(context.Background(), tx, nil)
		// only fallback 0.6 contributes: 0.6/4 = 0.15
		if analysis.FraudScore != 0.15 {
			t.Errorf("score = %v, want 0.15 after reconfiguration", analysis.FraudScore)
		}
	})

	t.Run("CallerCannotMutateApplied", func(t *testing.T) {
		next := domain.DefaultPatternConfig()
		a.UpdatePatterns(next)
		next.UnusualHours[0] = 23

		if a.Patterns().UnusualHours[0] == 23 {
			t.Error("active snapshot aliased caller slice")
		}
	})
}

func TestUpdateThreshold(t *testing.T) {
	a := newTestAnalyzer(t, 0.7, nil)

	if err := a.UpdateThreshold(1.5); err == nil {
		t.Error("expected error for out-of-range threshold")
	}
	if a.Threshold() != 0.7 {
		t.Error("threshold changed after rejected update")
	}

	if err := a.UpdateThreshold(0.3); err != nil {
		t.Fatalf("UpdateThreshold() error: %v", err)
	}
	if a.Threshold() != 0.3 {
		t.Errorf("threshold = %v, want 0.3", a.Threshold())
	}

	// 0.35 >= 0.3 now blocks
	tx := &domain.Transaction{Amount: 15000, Timestamp: weekdayAfternoon}
	analysis := a.AnalyzeTransaction(context.Background(), tx, nil)
	if !analysis.IsFraud || analysis.Recommendation != domain.RecommendationBlock {
		t.Errorf("expected BLOCK at threshold 0.3, got %+v", analysis)
	}
}
