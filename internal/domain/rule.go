package domain

import "time"

// ScreeningRule is an operator-defined CEL expression evaluated against
// each transaction alongside the built-in signal evaluators. Triggered
// rules contribute advisory indicators only; they never change the
// aggregated fraud score.
type ScreeningRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Expression is a CEL expression over the transaction and its history
	// summary. It must evaluate to a bool.
	Expression string `json:"expression"`

	// Indicator is the text appended to the analysis indicators when the
	// rule triggers.
	Indicator string `json:"indicator"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ScreeningResult is the outcome of one screening rule for one transaction.
type ScreeningResult struct {
	RuleID    string `json:"ruleId"`
	RuleName  string `json:"ruleName"`
	Triggered bool   `json:"triggered"`
	Indicator string `json:"indicator,omitempty"`

	// Err is set when the expression failed to evaluate; the rule is
	// treated as not triggered.
	Err string `json:"error,omitempty"`
}
