package model

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signal contributions per response category, matched in priority order.
const (
	fraudContribution   = 0.8
	cautionContribution = 0.4
)

// Fallback contributions when no model capability is available.
const (
	fallbackLargeAmountContribution = 0.6
	fallbackMicroContribution       = 0.3
	fallbackNeutralContribution     = 0.1
)

// Fallback amount boundaries.
const (
	fallbackLargeAmount = 5000.0
	fallbackMicroAmount = 1.0
)

// modelTextRetention is how many characters of raw model output are kept
// on the verdict for observability.
const modelTextRetention = 200

// Interpreter converts the model's free-text assessment into a signal
// verdict, substituting a deterministic amount-based fallback whenever the
// capability is missing or the call fails.
type Interpreter struct {
	complete CompleteFunc
	timeout  time.Duration
}

// NewInterpreter creates an interpreter over the given capability.
// A nil complete means fallback-only operation.
func NewInterpreter(complete CompleteFunc, timeout time.Duration) *Interpreter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Interpreter{
		complete: complete,
		timeout:  timeout,
	}
}

// Available reports whether a real model capability is configured.
func (i *Interpreter) Available() bool {
	return i.complete != nil
}

// Evaluate produces the model signal verdict for a transaction. The call
// is a single attempt with a bounded timeout; any failure falls back to
// the deterministic rule rather than propagating.
func (i *Interpreter) Evaluate(ctx context.Context, tx *domain.Transaction, history []domain.HistoryRecord) domain.Verdict {
	if i.complete == nil {
		return FallbackVerdict(tx.Amount)
	}

	callCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	text, err := i.complete(callCtx, BuildPrompt(tx, history))
	if err != nil {
		slog.Warn("model call failed, using fallback verdict", "error", err)
		return FallbackVerdict(tx.Amount)
	}

	verdict := Classify(text)
	verdict.ModelText = Truncate(text, modelTextRetention)
	return verdict
}

// Classify maps the model's free text onto a verdict by substring match,
// case-insensitive, in priority order.
func Classify(text string) domain.Verdict {
	upper := strings.ToUpper(text)

	switch {
	case strings.Contains(upper, "FRAUD") || strings.Contains(upper, "SUSPICIOUS"):
		return domain.Verdict{
			Contribution: fraudContribution,
			Suspicious:   true,
			Reason:       "Model detected suspicious patterns in transaction behavior",
		}
	case strings.Contains(upper, "CAUTION") || strings.Contains(upper, "UNUSUAL"):
		return domain.Verdict{
			Contribution: cautionContribution,
			Suspicious:   true,
			Reason:       "Model detected unusual but not necessarily fraudulent patterns",
		}
	default:
		return domain.Verdict{Reason: "Model analysis completed"}
	}
}

// FallbackVerdict is the deterministic substitute for the model signal:
// a pure function of the amount, identical across repeated calls.
func FallbackVerdict(amount float64) domain.Verdict {
	switch {
	case amount > fallbackLargeAmount:
		return domain.Verdict{
			Contribution: fallbackLargeAmountContribution,
			Suspicious:   true,
			Reason:       "Fallback analysis: large amount transaction requires review",
			ModelText:    "FALLBACK MODE: Transaction flagged due to high amount",
		}
	case amount < fallbackMicroAmount:
		return domain.Verdict{
			Contribution: fallbackMicroContribution,
			Suspicious:   true,
			Reason:       "Fallback analysis: micro-transaction could be testing behavior",
			ModelText:    "FALLBACK MODE: Very small transaction detected",
		}
	default:
		return domain.Verdict{
			Contribution: fallbackNeutralContribution,
			Reason:       "Fallback analysis: transaction appears normal",
			ModelText:    "FALLBACK MODE: No significant fraud indicators detected",
		}
	}
}

// Truncate returns at most n characters of s, cutting on a rune
// boundary so multi-byte model output is never split mid-rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
