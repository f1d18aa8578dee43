// Package ledger forwards approved transactions to the ledger-writer
// service.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const maxResponseBytes = 1 << 20

// Annotation is the analysis summary attached to a forwarded transaction.
type Annotation struct {
	Score          float64 `json:"score"`
	AnalyzedAt     string  `json:"analyzedAt"`
	ServiceVersion string  `json:"serviceVersion"`
}

// annotatedTransaction is the wire form sent to the ledger writer.
type annotatedTransaction struct {
	Amount      float64    `json:"amount"`
	FromAccount string     `json:"fromAccountNum"`
	ToAccount   string     `json:"toAccountNum"`
	Description string     `json:"description,omitempty"`
	Analysis    Annotation `json:"fraudAnalysis"`
}

// Client submits approved transactions to the ledger writer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	version    string
}

// New creates a ledger client.
func New(cfg domain.LedgerConfig, version string) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.Addr,
		version:    version,
	}
}

// Forward submits the transaction annotated with its analysis result.
// authHeader, when non-empty, is passed through as the Authorization
// header. Returns the ledger writer's status code and response body.
func (c *Client) Forward(ctx context.Context, tx *domain.Transaction, analysis *domain.Analysis, authHeader string) (int, []byte, error) {
	if c.baseURL == "" {
		return 0, nil, fmt.Errorf("ledger address is not configured")
	}

	payload := annotatedTransaction{
		Amount:      tx.Amount,
		FromAccount: tx.FromAccount,
		ToAccount:   tx.ToAccount,
		Description: tx.Description,
		Analysis: Annotation{
			Score:          analysis.FraudScore,
			AnalyzedAt:     analysis.AnalyzedAt.Format(time.RFC3339),
			ServiceVersion: c.version,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to encode ledger payload: %w", err)
	}

	url := c.baseURL + "/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read ledger response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
