package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/analyzer"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/screening"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	analyzer  *analyzer.Analyzer
	tracker   *stats.Tracker
	historyC  *history.Client
	ledgerC   *ledger.Client
	screening *screening.Engine
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	version   string
	modelOn   bool
}

// NewHandler creates a new API handler. historyC, ledgerC, screening,
// repo, cache, and bus may each be nil; the corresponding behavior is
// then skipped or reported unavailable.
func NewHandler(a *analyzer.Analyzer, tracker *stats.Tracker, historyC *history.Client, ledgerC *ledger.Client, screeningEngine *screening.Engine, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string, modelOn bool) *Handler {
	return &Handler{
		analyzer:  a,
		tracker:   tracker,
		historyC:  historyC,
		ledgerC:   ledgerC,
		screening: screeningEngine,
		repo:      repo,
		cache:     cache,
		bus:       bus,
		version:   version,
		modelOn:   modelOn,
	}
}

// analyzeRequest is the request body for POST /analyze-transaction.
// Amount decoding is lenient: numbers and quoted decimal strings are
// both accepted, and anything unparseable counts as zero.
type analyzeRequest struct {
	Amount      json.RawMessage `json:"amount"`
	FromAccount string          `json:"fromAccountNum"`
	ToAccount   string          `json:"toAccountNum"`
	Description string          `json:"description"`
	Timestamp   string          `json:"timestamp"`
}

// analyzeResponse is the response for POST /analyze-transaction.
type analyzeResponse struct {
	Analysis     *domain.Analysis `json:"fraudAnalysis"`
	LedgerStatus int              `json:"ledgerStatus,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// completedEvent is published on the analysis-completed and alert topics.
type completedEvent struct {
	Transaction *domain.Transaction `json:"transaction"`
	Analysis    *domain.Analysis    `json:"analysis"`
}

// AnalyzeTransaction handles POST /analyze-transaction. Blocked
// transactions get 403 with the analysis attached; allowed ones are
// annotated and forwarded to the ledger writer.
func (h *Handler) AnalyzeTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authHeader := GetAuthHeader(ctx)

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.FromAccount == "" || req.ToAccount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "fromAccountNum and toAccountNum are required",
		})
		return
	}

	tx := &domain.Transaction{
		ID:          uuid.New().String(),
		Amount:      domain.ParseLenientAmount(req.Amount),
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Description: req.Description,
	}
	if req.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, req.Timestamp); err == nil {
			tx.Timestamp = ts
		}
	}

	var records []domain.HistoryRecord
	if h.historyC != nil {
		records = h.historyC.Fetch(ctx, tx.FromAccount, authHeader)
	}

	analysis := h.analyzer.AnalyzeTransaction(ctx, tx, records)

	// Advisory screening indicators go after the core four; they never
	// change the score.
	if h.screening != nil && h.screening.RulesCount() > 0 {
		results := h.screening.Screen(ctx, &screening.Input{
			Tx:      tx,
			History: records,
			At:      analysis.AnalyzedAt,
		})
		analysis.Indicators = append(analysis.Indicators, screening.Indicators(results)...)
	}

	h.publishAnalysis(ctx, tx, analysis)

	if analysis.IsFraud {
		slog.Warn("transaction blocked",
			"analysis_id", analysis.ID,
			"score", analysis.FraudScore,
			"from_account", tx.FromAccount,
		)
		writeJSON(w, http.StatusForbidden, analyzeResponse{
			Analysis: analysis,
			Error:    "transaction blocked by fraud analysis",
		})
		return
	}

	resp := analyzeResponse{Analysis: analysis}

	if h.ledgerC != nil {
		status, _, err := h.ledgerC.Forward(ctx, tx, analysis, authHeader)
		if err != nil {
			slog.Error("failed to forward transaction to ledger",
				"analysis_id", analysis.ID,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, analyzeResponse{
				Analysis: analysis,
				Error:    "transaction approved but ledger forwarding failed",
			})
			return
		}
		resp.LedgerStatus = status
	}

	writeJSON(w, http.StatusOK, resp)
}

// publishAnalysis emits the completion event, plus an alert for blocked
// transactions. Best effort.
func (h *Handler) publishAnalysis(ctx context.Context, tx *domain.Transaction, analysis *domain.Analysis) {
	if h.bus == nil {
		return
	}

	payload, _ := json.Marshal(completedEvent{Transaction: tx, Analysis: analysis})
	if err := h.bus.Publish(ctx, domain.TopicAnalysisCompleted, payload); err != nil {
		slog.Error("failed to publish analysis result",
			"analysis_id", analysis.ID,
			"error", err,
		)
	}
	if analysis.IsFraud {
		if err := h.bus.Publish(ctx, domain.TopicAlert, payload); err != nil {
			slog.Error("failed to publish alert",
				"analysis_id", analysis.ID,
				"error", err,
			)
		}
	}
}

// statusResponse is the response for GET /fraud-status.
type statusResponse struct {
	Statistics          domain.Statistics `json:"statistics"`
	FraudRatePercentage float64           `json:"fraudRatePercentage"`
	Threshold           float64           `json:"threshold"`
	ModelEnabled        bool              `json:"modelEnabled"`
	Version             string            `json:"version"`
}

// FraudStatus handles GET /fraud-status.
func (h *Handler) FraudStatus(w http.ResponseWriter, r *http.Request) {
	rate := math.Round(h.tracker.FraudRatePercentage()*100) / 100

	writeJSON(w, http.StatusOK, statusResponse{
		Statistics:          h.tracker.Snapshot(),
		FraudRatePercentage: rate,
		Threshold:           h.analyzer.Threshold(),
		ModelEnabled:        h.modelOn,
		Version:             h.version,
	})
}

// Healthy handles GET /healthy.
func (h *Handler) Healthy(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"version":      h.version,
		"modelEnabled": h.modelOn,
		"statistics":   h.tracker.Snapshot(),
	})
}

// Ready handles GET /ready.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// Version handles GET /version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// GetPatterns handles GET /config/patterns.
func (h *Handler) GetPatterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.Patterns())
}

// UpdatePatterns handles PUT /config/patterns. The candidate config is
// validated before it replaces the active snapshot; in-flight analyses
// keep the snapshot they started with.
func (h *Handler) UpdatePatterns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.PatternConfig
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	applied, err := h.analyzer.UpdatePatterns(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if h.repo != nil {
		snap := &domain.PatternSnapshot{
			ID:        uuid.New().String(),
			Config:    *applied,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.repo.SavePatternSnapshot(ctx, snap); err != nil {
			slog.Error("failed to persist pattern snapshot", "error", err)
		}
	}

	slog.Info("pattern config updated",
		"high_amount_threshold", applied.HighAmountThreshold,
		"max_tx_per_window", applied.MaxTransactionsPerWindow,
	)
	writeJSON(w, http.StatusOK, applied)
}

// thresholdRequest is the request body for PUT /config/threshold.
type thresholdRequest struct {
	Threshold float64 `json:"threshold"`
}

// UpdateThreshold handles PUT /config/threshold.
func (h *Handler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if err := h.analyzer.UpdateThreshold(req.Threshold); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	slog.Info("fraud threshold updated", "threshold", req.Threshold)
	writeJSON(w, http.StatusOK, map[string]float64{
		"threshold": req.Threshold,
	})
}

// ListRules returns all screening rules loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening not available",
		})
		return
	}

	loadedRules := h.screening.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": loadedRules,
		"count": len(loadedRules),
	})
}

// GetRule retrieves a screening rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo != nil {
		rule, err := h.repo.GetScreeningRule(r.Context(), ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	} else if h.screening != nil {
		for _, rule := range h.screening.LoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRule creates a new screening rule, validates its expression, and
// loads it into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "screening not available",
		})
		return
	}

	var rule domain.ScreeningRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	// Validate CEL expression by attempting to load
	if err := h.screening.LoadRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveScreeningRule(ctx, &rule); err != nil {
			slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

// DeleteRule removes a screening rule and reloads the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteScreeningRule(ctx, ruleID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	h.reloadFromRepo(ctx)

	slog.Info("screening rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"deleted": ruleID,
	})
}

// ReloadRules reloads all screening rules from the repository into the
// engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil || h.screening == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository or screening not available",
		})
		return
	}

	count, err := h.reloadFromRepo(ctx)
	if err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadFromRepo(ctx context.Context) (int, error) {
	if h.repo == nil || h.screening == nil {
		return 0, nil
	}

	rules, err := h.repo.ListScreeningRules(ctx)
	if err != nil {
		return 0, err
	}
	if err := h.screening.ReloadRules(rules); err != nil {
		return 0, err
	}
	return len(rules), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
