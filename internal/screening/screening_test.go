package screening

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(4)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func rule(id, expression string) *domain.ScreeningRule {
	return &domain.ScreeningRule{
		ID:         id,
		Name:       id,
		Expression: expression,
		Enabled:    true,
	}
}

func TestLoadRule(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		wantErr    bool
	}{
		{name: "BoolExpression", expression: `amount > 1000.0`},
		{name: "CompoundExpression", expression: `amount > 500.0 && hour < 6`},
		{name: "StringMatch", expression: `description.contains("wire")`},
		{name: "NonBoolRejected", expression: `amount + 1.0`, wantErr: true},
		{name: "SyntaxErrorRejected", expression: `amount >>`, wantErr: true},
		{name: "UnknownVariableRejected", expression: `merchant_id == "x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			err := e.LoadRule(rule("r1", tt.expression))
			if tt.wantErr {
				if err == nil {
					t.Error("expected compile error")
				}
				if e.RulesCount() != 0 {
					t.Error("rejected rule must not be loaded")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadRule() error: %v", err)
			}
			if e.RulesCount() != 1 {
				t.Errorf("RulesCount() = %d, want 1", e.RulesCount())
			}
		})
	}
}

func TestLoadRulesSkipsDisabled(t *testing.T) {
	e := newTestEngine(t)

	disabled := rule("off", `amount > 0.0`)
	disabled.Enabled = false

	if err := e.LoadRules([]*domain.ScreeningRule{rule("on", `amount > 0.0`), disabled}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}
	if e.RulesCount() != 1 {
		t.Errorf("RulesCount() = %d, want 1", e.RulesCount())
	}
}

func TestScreen(t *testing.T) {
	e := newTestEngine(t)

	withIndicator := rule("high-amount", `amount > 1000.0`)
	withIndicator.Indicator = "Screening: amount above review limit"

	if err := e.LoadRules([]*domain.ScreeningRule{
		withIndicator,
		rule("night-transfer", `hour < 6 && amount > 100.0`),
		rule("never-fires", `amount < 0.0`),
	}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}

	input := &Input{
		Tx: &domain.Transaction{
			Amount:      2500,
			FromAccount: "1111111111",
			ToAccount:   "2222222222",
			Description: "transfer",
		},
		At: time.Date(2025, 6, 11, 14, 0, 0, 0, time.UTC),
	}

	results := e.Screen(context.Background(), input)
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	byID := make(map[string]domain.ScreeningResult)
	for _, r := range results {
		byID[r.RuleID] = r
	}

	if r := byID["high-amount"]; !r.Triggered || r.Indicator != "Screening: amount above review limit" {
		t.Errorf("high-amount = %+v", r)
	}
	if r := byID["night-transfer"]; r.Triggered {
		t.Errorf("night-transfer must not trigger at 14:00: %+v", r)
	}
	if r := byID["never-fires"]; r.Triggered {
		t.Errorf("never-fires triggered: %+v", r)
	}

	indicators := Indicators(results)
	if len(indicators) != 1 || indicators[0] != "Screening: amount above review limit" {
		t.Errorf("Indicators() = %v", indicators)
	}
}

func TestScreenDefaultIndicator(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadRule(rule("no-indicator", `amount > 0.0`)); err != nil {
		t.Fatalf("LoadRule() error: %v", err)
	}

	results := e.Screen(context.Background(), &Input{
		Tx: &domain.Transaction{Amount: 10},
		At: time.Now(),
	})
	if len(results) != 1 || !results[0].Triggered {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Indicator != "Screening rule triggered: no-indicator" {
		t.Errorf("indicator = %q", results[0].Indicator)
	}
}

func TestScreenHistorySummary(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadRules([]*domain.ScreeningRule{
		rule("above-average", `history_count > 0 && amount > history_avg * 2.0`),
		rule("new-peak", `amount > history_max`),
	}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}

	results := e.Screen(context.Background(), &Input{
		Tx: &domain.Transaction{Amount: 900},
		History: []domain.HistoryRecord{
			{Amount: 100}, {Amount: 200}, {Amount: 300},
		},
		At: time.Now(),
	})

	byID := make(map[string]domain.ScreeningResult)
	for _, r := range results {
		byID[r.RuleID] = r
	}
	// avg 200, max 300: 900 exceeds both
	if !byID["above-average"].Triggered {
		t.Error("above-average should trigger for 900 vs avg 200")
	}
	if !byID["new-peak"].Triggered {
		t.Error("new-peak should trigger for 900 vs max 300")
	}
}

func TestScreenNoRules(t *testing.T) {
	e := newTestEngine(t)
	results := e.Screen(context.Background(), &Input{Tx: &domain.Transaction{}, At: time.Now()})
	if results != nil {
		t.Errorf("expected nil results, got %v", results)
	}
}

func TestReloadRules(t *testing.T) {
	e := newTestEngine(t)
	if err := e.LoadRules([]*domain.ScreeningRule{
		rule("a", `amount > 0.0`),
		rule("b", `amount > 0.0`),
	}); err != nil {
		t.Fatalf("LoadRules() error: %v", err)
	}

	if err := e.ReloadRules([]*domain.ScreeningRule{rule("c", `hour == 3`)}); err != nil {
		t.Fatalf("ReloadRules() error: %v", err)
	}

	if e.RulesCount() != 1 {
		t.Errorf("RulesCount() = %d, want 1 after reload", e.RulesCount())
	}
	loaded := e.LoadedRules()
	if len(loaded) != 1 || loaded[0].ID != "c" {
		t.Errorf("LoadedRules() = %+v", loaded)
	}

	// A failed reload leaves the engine unchanged.
	if err := e.ReloadRules([]*domain.ScreeningRule{rule("bad", `amount +`)}); err == nil {
		t.Error("expected reload error for bad rule")
	}
	if e.RulesCount() != 1 {
		t.Errorf("RulesCount() = %d, want 1 after failed reload", e.RulesCount())
	}
}

func TestValidateRuleDoesNotLoad(t *testing.T) {
	e := newTestEngine(t)
	if err := e.ValidateRule(rule("v", `amount > 10.0`)); err != nil {
		t.Fatalf("ValidateRule() error: %v", err)
	}
	if e.RulesCount() != 0 {
		t.Errorf("RulesCount() = %d, want 0", e.RulesCount())
	}
}
