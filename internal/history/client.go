// Package history fetches account transaction history from the
// transaction-history service.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const maxResponseBytes = 4 << 20

// Client fetches recent transactions for an account. Lookups go through
// the cache first; fetch failures degrade to an empty history so an
// unavailable upstream never blocks analysis.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      domain.Cache
	cacheTTL   time.Duration
}

// New creates a history client. cache may be nil to disable caching.
func New(cfg domain.HistoryConfig, cache domain.Cache) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ttl := time.Duration(cfg.CacheTTLSecs) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.Addr,
		cache:      cache,
		cacheTTL:   ttl,
	}
}

// Fetch returns the recent history for an account. authHeader, when
// non-empty, is forwarded as the Authorization header. Any failure is
// logged and an empty history returned.
func (c *Client) Fetch(ctx context.Context, accountNum, authHeader string) []domain.HistoryRecord {
	if c.baseURL == "" || accountNum == "" {
		return nil
	}

	if c.cache != nil {
		if records, err := c.cache.GetHistory(ctx, accountNum); err == nil && records != nil {
			return records
		}
	}

	records, err := c.fetch(ctx, accountNum, authHeader)
	if err != nil {
		slog.Warn("failed to fetch transaction history",
			"account", accountNum,
			"error", err)
		return nil
	}

	if c.cache != nil && records != nil {
		if err := c.cache.SetHistory(ctx, accountNum, records, c.cacheTTL); err != nil {
			slog.Warn("failed to cache transaction history",
				"account", accountNum,
				"error", err)
		}
	}

	return records
}

func (c *Client) fetch(ctx context.Context, accountNum, authHeader string) ([]domain.HistoryRecord, error) {
	url := fmt.Sprintf("%s/transactions/%s", c.baseURL, accountNum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create history request: %w", err)
	}
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read history response: %w", err)
	}

	var records []domain.HistoryRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	return records, nil
}
