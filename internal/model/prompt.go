package model

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// promptHistoryLimit caps how many trailing history records are included
// in the prompt.
const promptHistoryLimit = 10

// BuildPrompt renders the analysis prompt for the current transaction and
// up to the last ten history records.
func BuildPrompt(tx *domain.Transaction, history []domain.HistoryRecord) string {
	var b strings.Builder

	b.WriteString("You are a fraud detection expert analyzing a bank transaction. ")
	b.WriteString("Based on the transaction details and user history, determine if this transaction is potentially fraudulent.\n\n")

	b.WriteString("Current Transaction:\n")
	fmt.Fprintf(&b, "- Amount: $%.2f\n", tx.Amount)
	fmt.Fprintf(&b, "- From Account: %s\n", orNA(tx.FromAccount))
	fmt.Fprintf(&b, "- To Account: %s\n", orNA(tx.ToAccount))
	fmt.Fprintf(&b, "- Description: %s\n", orNA(tx.Description))

	fmt.Fprintf(&b, "\nRecent Transaction History (last %d transactions):\n", len(history))
	recent := history
	if len(recent) > promptHistoryLimit {
		recent = recent[len(recent)-promptHistoryLimit:]
	}
	for i, rec := range recent {
		fmt.Fprintf(&b, "- Transaction %d: $%.2f - %s\n", i+1, rec.Amount, orNA(rec.Description))
	}

	b.WriteString("\nPlease analyze this transaction and respond with one of:\n")
	b.WriteString("- NORMAL: Transaction appears legitimate\n")
	b.WriteString("- CAUTION: Transaction has some unusual characteristics but may be legitimate\n")
	b.WriteString("- SUSPICIOUS: Transaction shows concerning patterns\n")
	b.WriteString("- FRAUD: Transaction is likely fraudulent\n\n")
	b.WriteString("Provide a brief explanation for your assessment.\n")

	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
