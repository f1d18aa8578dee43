// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Transaction represents an inbound transaction submitted for fraud analysis.
// Immutable once received; its lifecycle is a single analysis call.
type Transaction struct {
	ID          string    `json:"id,omitempty"`
	Amount      float64   `json:"amount"`
	FromAccount string    `json:"fromAccountNum"`
	ToAccount   string    `json:"toAccountNum"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// HistoryRecord is one past transaction for the same source account, as
// returned by the transaction-history service. The core never mutates
// history; ordering is whatever the history service provides
// (most recent last).
type HistoryRecord struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// historyRecordWire mirrors HistoryRecord but defers amount decoding,
// since the upstream history service serializes amounts as strings.
type historyRecordWire struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	Timestamp   string          `json:"timestamp"`
}

// UnmarshalJSON decodes a history record leniently: amounts may arrive as
// JSON numbers or quoted decimal strings, and anything unparseable counts
// as zero rather than failing the whole history fetch.
func (h *HistoryRecord) UnmarshalJSON(data []byte) error {
	var wire historyRecordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	h.Amount = ParseLenientAmount(wire.Amount)
	h.Description = wire.Description
	h.Timestamp = wire.Timestamp
	return nil
}

// ParseLenientAmount converts a raw JSON value to a float64 amount.
// Missing, malformed, or non-numeric values become 0; the analysis
// pipeline is lenient on malformed upstream data.
func ParseLenientAmount(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}

	s := string(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	amount, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return amount
}
