package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// CohortService is the slice of the cohort lifecycle the handler needs.
type CohortService interface {
	CreateCohortIfDue(ctx context.Context) (domain.Cohort, bool, error)
	Active(ctx context.Context) (domain.Cohort, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Cohort, error)
}

// CohortHandler serves cohort inspection and the weekly rollover trigger.
type CohortHandler struct {
	cohorts CohortService
	ledgers domain.LedgerStore
	logger  *slog.Logger
}

// NewCohortHandler creates a CohortHandler.
func NewCohortHandler(cohorts CohortService, ledgers domain.LedgerStore, logger *slog.Logger) *CohortHandler {
	return &CohortHandler{cohorts: cohorts, ledgers: ledgers, logger: logger}
}

// ListCohorts returns cohorts newest first.
// GET /api/cohorts?limit=50&offset=0
func (h *CohortHandler) ListCohorts(w http.ResponseWriter, r *http.Request) {
	cohorts, err := h.cohorts.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list cohorts failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list cohorts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cohorts": cohorts})
}

// ActiveCohort returns the active cohort with its ledgers.
// GET /api/cohorts/active
func (h *CohortHandler) ActiveCohort(w http.ResponseWriter, r *http.Request) {
	cohort, err := h.cohorts.Active(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveCohort) {
			writeError(w, http.StatusNotFound, "no active cohort")
			return
		}
		h.logger.ErrorContext(r.Context(), "active cohort failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get active cohort")
		return
	}

	ledgers, err := h.ledgers.ListByCohort(r.Context(), cohort.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "cohort ledgers failed",
			slog.String("cohort_id", cohort.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list cohort ledgers")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cohort":  cohort,
		"ledgers": ledgers,
	})
}

// CreateCohort triggers the weekly rollover, creating the current ISO-week
// cohort when it does not exist yet. 200 means the cohort already existed;
// 201 means this call created it.
// POST /api/cohorts
func (h *CohortHandler) CreateCohort(w http.ResponseWriter, r *http.Request) {
	cohort, created, err := h.cohorts.CreateCohortIfDue(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrBudgetExhausted) {
			writeError(w, http.StatusPaymentRequired, "budget exhausted")
			return
		}
		h.logger.ErrorContext(r.Context(), "cohort create failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create cohort")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"cohort":  cohort,
		"created": created,
	})
}
