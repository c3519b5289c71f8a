package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// BudgetService is the slice of the budget layer the cost handler needs.
type BudgetService interface {
	Summary(ctx context.Context) (domain.CostSummary, error)
}

// CostHandler serves the spend report.
type CostHandler struct {
	budget BudgetService
	logger *slog.Logger
}

// NewCostHandler creates a CostHandler.
func NewCostHandler(budget BudgetService, logger *slog.Logger) *CostHandler {
	return &CostHandler{budget: budget, logger: logger}
}

// Costs returns cumulative spend against the cap plus per-agent, per-round,
// and daily breakdowns.
// GET /api/costs
func (h *CostHandler) Costs(w http.ResponseWriter, r *http.Request) {
	summary, err := h.budget.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cost summary failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to build cost summary")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total_spent":      summary.TotalSpent,
		"budget_cap":       summary.BudgetCap,
		"budget_remaining": summary.BudgetRemaining,
		"budget_pct_used":  summary.BudgetPctUsed,
		"over_budget":      summary.OverBudget,
		"per_agent":        summary.PerAgent,
		"per_round":        summary.PerRound,
		"daily":            summary.Daily,
	})
}
