package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/blob/s3"
	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/service"
)

// RoundRunner is the slice of the round orchestrator the handler needs.
type RoundRunner interface {
	RunRound(ctx context.Context) (service.RoundResult, error)
	ListRecent(ctx context.Context, limit int) ([]domain.Round, error)
}

// RoundHandler serves round inspection and the round trigger endpoint.
type RoundHandler struct {
	rounds   RoundRunner
	store    domain.RoundStore
	bets     domain.BetStore
	archives domain.BlobReader // nil when no blob store is configured
	logger   *slog.Logger
}

// NewRoundHandler creates a RoundHandler. archives may be nil.
func NewRoundHandler(
	rounds RoundRunner,
	store domain.RoundStore,
	bets domain.BetStore,
	archives domain.BlobReader,
	logger *slog.Logger,
) *RoundHandler {
	return &RoundHandler{
		rounds:   rounds,
		store:    store,
		bets:     bets,
		archives: archives,
		logger:   logger,
	}
}

// ListRounds returns the most recent rounds.
// GET /api/rounds?limit=50
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	rounds, err := h.rounds.ListRecent(r.Context(), opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list rounds failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": rounds})
}

// GetRound returns one round with its bets.
// GET /api/rounds/{id}
func (h *RoundHandler) GetRound(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	round, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get round failed",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get round")
		return
	}

	bets, err := h.bets.ListByRound(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list round bets failed",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list round bets")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"round": round,
		"bets":  bets,
	})
}

// TriggerRound runs one full round synchronously and returns the result.
// POST /api/rounds
func (h *RoundHandler) TriggerRound(w http.ResponseWriter, r *http.Request) {
	result, err := h.rounds.RunRound(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrBudgetExhausted):
			writeError(w, http.StatusPaymentRequired, "budget exhausted")
		case errors.Is(err, domain.ErrNoMarkets):
			writeError(w, http.StatusConflict, "no admissible markets")
		case errors.Is(err, domain.ErrNoActiveCohort):
			writeError(w, http.StatusConflict, "no active cohort")
		case errors.Is(err, domain.ErrLockHeld):
			writeError(w, http.StatusConflict, "a round is already running")
		default:
			h.logger.ErrorContext(r.Context(), "round trigger failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "round failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"round_id": result.Round.ID,
		"status":   result.Round.Status,
		"markets":  len(result.Round.MarketIDs),
		"bets":     len(result.Bets),
	})
}

// GetRoundArchive streams the archived audit bundle for one round.
// GET /api/rounds/{id}/archive
func (h *RoundHandler) GetRoundArchive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotFound, "archive storage not configured")
		return
	}
	id := r.PathValue("id")

	round, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get round")
		return
	}

	body, err := h.archives.Get(r.Context(), s3blob.RoundArchivePath(round.CohortID, round.ID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "round not archived")
			return
		}
		h.logger.ErrorContext(r.Context(), "archive fetch failed",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive stream interrupted",
			slog.String("round_id", id),
			slog.String("error", err.Error()),
		)
	}
}
