package stats

import (
	"sync"
	"testing"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestRecordCounters(t *testing.T) {
	tr := NewTracker()

	tr.Record(&domain.Analysis{FraudScore: 0.1})                // clean
	tr.Record(&domain.Analysis{FraudScore: 0.3})                // boundary: not flagged
	tr.Record(&domain.Analysis{FraudScore: 0.35})               // flagged
	tr.Record(&domain.Analysis{FraudScore: 0.8, IsFraud: true}) // flagged + blocked

	snap := tr.Snapshot()
	if snap.TotalTransactions != 4 {
		t.Errorf("total = %d, want 4", snap.TotalTransactions)
	}
	if snap.FlaggedTransactions != 2 {
		t.Errorf("flagged = %d, want 2", snap.FlaggedTransactions)
	}
	if snap.BlockedTransactions != 1 {
		t.Errorf("blocked = %d, want 1", snap.BlockedTransactions)
	}
	if snap.LastAnalysisTime.IsZero() {
		t.Error("lastAnalysisTime not set")
	}
}

func TestFraudRatePercentage(t *testing.T) {
	tr := NewTracker()

	if got := tr.FraudRatePercentage(); got != 0.0 {
		t.Errorf("empty tracker rate = %v, want 0", got)
	}

	tr.Record(&domain.Analysis{FraudScore: 0.9, IsFraud: true})
	tr.Record(&domain.Analysis{FraudScore: 0.1})
	tr.Record(&domain.Analysis{FraudScore: 0.1})

	want := 100.0 / 3.0
	if got := tr.FraudRatePercentage(); got != want {
		t.Errorf("rate = %v, want %v", got, want)
	}
}

func TestRecordConcurrent(t *testing.T) {
	tr := NewTracker()

	const workers = 50
	const perWorker = 20

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				tr.Record(&domain.Analysis{FraudScore: 0.9, IsFraud: true})
			}
		}()
	}
	wg.Wait()

	snap := tr.Snapshot()
	if snap.TotalTransactions != workers*perWorker {
		t.Errorf("total = %d, want %d", snap.TotalTransactions, workers*perWorker)
	}
	if snap.BlockedTransactions != workers*perWorker {
		t.Errorf("blocked = %d, want %d", snap.BlockedTransactions, workers*perWorker)
	}
}
