// Package worker provides async transaction intake from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/analyzer"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/screening"
)

// defaultIntakeLimit caps how many submissions a single account may feed
// through the async path per rolling window. Excess submissions are
// dropped with a warning; the HTTP path is unaffected.
const defaultIntakeLimit = 60

// intakeWindow is the rolling window for the per-account intake counter.
const intakeWindow = time.Minute

// Worker analyzes transactions submitted through the EventBus, as an
// alternative intake path to the HTTP API. Results go back out on the
// analysis-completed topic; blocked transactions additionally raise an
// alert.
type Worker struct {
	bus       domain.EventBus
	analyzer  *analyzer.Analyzer
	historyC  *history.Client
	screening *screening.Engine
	cache     domain.Cache

	intakeLimit int

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker. historyC, screeningEngine and c
// may be nil; without a cache the per-account intake limit is not
// enforced.
func NewWorker(bus domain.EventBus, a *analyzer.Analyzer, historyC *history.Client, screeningEngine *screening.Engine, c domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:         bus,
		analyzer:    a,
		historyC:    historyC,
		screening:   screeningEngine,
		cache:       c,
		intakeLimit: defaultIntakeLimit,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start subscribes to the transaction intake topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started",
		"topic", domain.TopicTransactionSubmitted,
	)

	return nil
}

// completedEvent is the payload published on the analysis-completed and
// alert topics.
type completedEvent struct {
	Transaction *domain.Transaction `json:"transaction"`
	Analysis    *domain.Analysis    `json:"analysis"`
}

// handleMessage analyzes one submitted transaction.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	start := time.Now()

	var tx domain.Transaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if w.cache != nil && tx.FromAccount != "" {
		count, err := w.cache.IncrementCounter(ctx, "intake:"+tx.FromAccount, intakeWindow)
		if err != nil {
			slog.Warn("intake counter unavailable", "error", err)
		} else if count > int64(w.intakeLimit) {
			slog.Warn("dropping submission over account intake limit",
				"account", tx.FromAccount,
				"count", count,
				"limit", w.intakeLimit,
			)
			return nil
		}
	}

	var records []domain.HistoryRecord
	if w.historyC != nil {
		records = w.historyC.Fetch(ctx, tx.FromAccount, "")
	}

	analysis := w.analyzer.AnalyzeTransaction(ctx, &tx, records)

	if w.screening != nil && w.screening.RulesCount() > 0 {
		at := tx.Timestamp
		if at.IsZero() {
			at = analysis.AnalyzedAt
		}
		results := w.screening.Screen(ctx, &screening.Input{
			Tx:      &tx,
			History: records,
			At:      at.UTC(),
		})
		analysis.Indicators = append(analysis.Indicators, screening.Indicators(results)...)
	}

	payload, _ := json.Marshal(completedEvent{Transaction: &tx, Analysis: analysis})
	if err := w.bus.Publish(ctx, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish analysis result",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}

	if analysis.IsFraud {
		if err := w.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction analyzed",
		"analysis_id", analysis.ID,
		"score", analysis.FraudScore,
		"recommendation", analysis.Recommendation,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
