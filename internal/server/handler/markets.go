package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// MarketSyncer is the slice of the market service the handler needs.
type MarketSyncer interface {
	Sync(ctx context.Context) (int, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
}

// MarketHandler serves market snapshots and the sync trigger.
type MarketHandler struct {
	markets MarketSyncer
	store   domain.MarketStore
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets MarketSyncer, store domain.MarketStore, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, store: store, logger: logger}
}

// ListMarkets returns stored market snapshots, most recently fetched first.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"markets": markets,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetMarket returns one market snapshot.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	market, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, market)
}

// SyncMarkets refreshes the stored snapshots from the external feed.
// POST /api/markets/sync
func (h *MarketHandler) SyncMarkets(w http.ResponseWriter, r *http.Request) {
	count, err := h.markets.Sync(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "market sync failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "market sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": count})
}
