// Package screening provides the CEL-based advisory rule engine.
//
// Screening rules are operator-defined expressions evaluated alongside
// the built-in signal evaluators. Triggered rules append advisory
// indicators to an analysis; they never change the aggregated score or
// the block decision.
package screening

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Engine is the CEL-based screening rule engine.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*compiledRule
	maxWorkers    int
}

// compiledRule holds a pre-compiled CEL program.
type compiledRule struct {
	rule    *domain.ScreeningRule
	program cel.Program
}

// NewEngine creates a new screening engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	// CEL environment exposing the transaction and a history summary
	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("from_account", cel.StringType),
		cel.Variable("to_account", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("history_avg", cel.DoubleType),
		cel.Variable("history_max", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*compiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// ValidateRule compiles a rule without loading it into the engine.
func (e *Engine) ValidateRule(rule *domain.ScreeningRule) error {
	if rule == nil {
		return fmt.Errorf("screening rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(rule)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(rule *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(rule)
	if err != nil {
		return err
	}

	e.compiledRules[rule.ID] = compiled
	return nil
}

// LoadRules compiles and loads all enabled rules.
func (e *Engine) LoadRules(rules []*domain.ScreeningRule) error {
	for _, rule := range rules {
		if rule.Enabled {
			if err := e.LoadRule(rule); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. This enables
// hot-reloading of rules from the repository.
func (e *Engine) ReloadRules(rules []*domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*compiledRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}

		compiled, err := e.compileRule(rule)
		if err != nil {
			return err
		}
		newRules[rule.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// Input holds the transaction data for screening.
type Input struct {
	Tx      *domain.Transaction
	History []domain.HistoryRecord
	At      time.Time
}

// Screen evaluates all loaded rules in parallel and returns one result
// per rule. Evaluation errors mark the rule untriggered; they never fail
// the analysis.
func (e *Engine) Screen(ctx context.Context, input *Input) []domain.ScreeningResult {
	e.mu.RLock()
	rules := make([]*compiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := buildActivation(input)

	results := make([]domain.ScreeningResult, len(rules))
	var wg sync.WaitGroup

	// Limit concurrency with semaphore
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *compiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()
	return results
}

// Indicators returns the indicator texts of all triggered results.
func Indicators(results []domain.ScreeningResult) []string {
	var indicators []string
	for _, r := range results {
		if r.Triggered && r.Indicator != "" {
			indicators = append(indicators, r.Indicator)
		}
	}
	return indicators
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// LoadedRules returns the currently loaded rule definitions.
func (e *Engine) LoadedRules() []*domain.ScreeningRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.ScreeningRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.rule)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*compiledRule)
	return nil
}

func (e *Engine) compileRule(rule *domain.ScreeningRule) (*compiledRule, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", rule.ID, err)
	}

	return &compiledRule{
		rule:    rule,
		program: program,
	}, nil
}

func evaluateRule(r *compiledRule, activation map[string]any) domain.ScreeningResult {
	result := domain.ScreeningResult{
		RuleID:   r.rule.ID,
		RuleName: r.rule.Name,
	}

	out, _, err := r.program.Eval(activation)
	if err != nil {
		result.Err = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	if triggered, ok := out.(types.Bool); ok && bool(triggered) {
		result.Triggered = true
		result.Indicator = r.rule.Indicator
		if result.Indicator == "" {
			result.Indicator = fmt.Sprintf("Screening rule triggered: %s", r.rule.Name)
		}
	}

	return result
}

func buildActivation(input *Input) map[string]any {
	var historyAvg, historyMax float64
	if n := len(input.History); n > 0 {
		var sum float64
		for _, rec := range input.History {
			sum += rec.Amount
			if rec.Amount > historyMax {
				historyMax = rec.Amount
			}
		}
		historyAvg = sum / float64(n)
	}

	return map[string]any{
		"amount":        input.Tx.Amount,
		"from_account":  input.Tx.FromAccount,
		"to_account":    input.Tx.ToAccount,
		"description":   input.Tx.Description,
		"hour":          input.At.Hour(),
		"weekday":       int(input.At.Weekday()),
		"history_count": len(input.History),
		"history_avg":   historyAvg,
		"history_max":   historyMax,
	}
}
