package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/service"
)

// Settler is the slice of the settlement engine the handler needs.
type Settler interface {
	SettleMarkets(ctx context.Context) (service.SettleResult, error)
}

// SettlementHandler serves the settlement trigger endpoint.
type SettlementHandler struct {
	settler Settler
	logger  *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(settler Settler, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{settler: settler, logger: logger}
}

// TriggerSettlement runs one settlement pass synchronously.
// POST /api/settle
func (h *SettlementHandler) TriggerSettlement(w http.ResponseWriter, r *http.Request) {
	result, err := h.settler.SettleMarkets(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "settlement is already running")
			return
		}
		h.logger.ErrorContext(r.Context(), "settlement trigger failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "settlement failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"settled_bets":      result.SettledBets,
		"resolved_markets":  result.ResolvedMarkets,
		"completed_cohorts": result.CompletedCohorts,
	})
}
