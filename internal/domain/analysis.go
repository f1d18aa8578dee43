package domain

import (
	"time"
)

// Verdict is the output of a single fraud signal evaluator: a bounded
// numeric contribution, a suspicion flag, and a human-readable reason.
// Verdicts are created and consumed within one analysis call.
type Verdict struct {
	Contribution float64 `json:"contribution"`
	Suspicious   bool    `json:"suspicious"`
	Reason       string  `json:"reason"`

	// ModelText holds the first 200 characters of raw model output, when
	// the verdict came from the model interpreter. Observability only.
	ModelText string `json:"modelText,omitempty"`
}

// Recommendation values for an analysis.
const (
	RecommendationAllow = "ALLOW"
	RecommendationBlock = "BLOCK"
)

// Analysis is the aggregated fraud decision for one transaction.
type Analysis struct {
	ID            string    `json:"id"`
	IsFraud       bool      `json:"isFraud"`
	FraudScore    float64   `json:"fraudScore"`
	Indicators    []string  `json:"fraudIndicators"`
	AnalyzedAt    time.Time `json:"analysisTimestamp"`
	ThresholdUsed float64   `json:"thresholdUsed"`

	// Recommendation is BLOCK iff IsFraud, ALLOW otherwise.
	Recommendation string `json:"recommendation"`

	// ModelText is the retained (truncated) raw model output, if any.
	ModelText string `json:"modelAnalysis,omitempty"`
}

// Statistics is a consistent snapshot of the process-wide fraud counters.
type Statistics struct {
	TotalTransactions   int64     `json:"totalTransactions"`
	FlaggedTransactions int64     `json:"flaggedTransactions"`
	BlockedTransactions int64     `json:"blockedTransactions"`
	LastAnalysisTime    time.Time `json:"lastAnalysisTime,omitempty"`
}
