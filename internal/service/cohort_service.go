package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/notify"
)

// CohortIDFor returns the ISO-week cohort identifier for t, e.g. "2026-W35".
func CohortIDFor(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// isoWeekStart returns 00:00 UTC on the Monday of t's ISO week.
func isoWeekStart(t time.Time) time.Time {
	t = t.UTC()
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// CohortService drives the weekly cohort lifecycle.
type CohortService struct {
	cohorts  domain.CohortStore
	agents   domain.AgentStore
	budget   *BudgetService
	notifier *notify.Notifier
	logger   *slog.Logger

	bankroll float64
	now      func() time.Time
}

// NewCohortService creates a CohortService. initialBankroll is the amount
// every agent ledger is seeded with on rollover.
func NewCohortService(
	cohorts domain.CohortStore,
	agents domain.AgentStore,
	budget *BudgetService,
	notifier *notify.Notifier,
	initialBankroll float64,
	logger *slog.Logger,
) *CohortService {
	if initialBankroll <= 0 {
		initialBankroll = domain.DefaultInitialBankroll
	}
	return &CohortService{
		cohorts:  cohorts,
		agents:   agents,
		budget:   budget,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "cohort")),
		bankroll: initialBankroll,
		now:      time.Now,
	}
}

// CreateCohortIfDue creates the cohort for the current ISO week if it does
// not already exist: the previous active cohort moves to settling, the new
// cohort becomes active, and every agent's ledger is seeded, all in one
// transaction. It returns the cohort and whether it was created by this call.
//
// Creation is refused with domain.ErrBudgetExhausted when the budget guard
// reports the spend cap is reached.
func (s *CohortService) CreateCohortIfDue(ctx context.Context) (domain.Cohort, bool, error) {
	now := s.now()
	id := CohortIDFor(now)

	existing, err := s.cohorts.GetByID(ctx, id)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Cohort{}, false, fmt.Errorf("cohort: check %s: %w", id, err)
	}

	ok, err := s.budget.CanAffordRound(ctx)
	if err != nil {
		return domain.Cohort{}, false, err
	}
	if !ok {
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, notify.EventBudgetExhausted,
				"Budget exhausted",
				fmt.Sprintf("Cohort %s was not created: spend cap %.2f USD reached.", id, s.budget.Cap()))
		}
		return domain.Cohort{}, false, fmt.Errorf("cohort: create %s: %w", id, domain.ErrBudgetExhausted)
	}

	agents, err := s.agents.List(ctx)
	if err != nil {
		return domain.Cohort{}, false, fmt.Errorf("cohort: list agents: %w", err)
	}
	agentIDs := make([]string, 0, len(agents))
	for _, a := range agents {
		agentIDs = append(agentIDs, a.ID)
	}

	start := isoWeekStart(now)
	cohort := domain.Cohort{
		ID:        id,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 7),
		Status:    domain.CohortStatusActive,
	}

	if err := s.cohorts.Rollover(ctx, cohort, agentIDs, s.bankroll); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a race with a concurrent creator; return theirs.
			existing, getErr := s.cohorts.GetByID(ctx, id)
			if getErr != nil {
				return domain.Cohort{}, false, fmt.Errorf("cohort: get after race %s: %w", id, getErr)
			}
			return existing, false, nil
		}
		return domain.Cohort{}, false, fmt.Errorf("cohort: rollover %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "cohort created",
		slog.String("cohort_id", id),
		slog.Int("agents", len(agentIDs)),
		slog.Float64("bankroll", s.bankroll),
	)
	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, notify.EventCohortCreated,
			"Cohort created",
			fmt.Sprintf("Cohort %s is live with %d agents at %.0f bankroll each.", id, len(agentIDs), s.bankroll))
	}

	return cohort, true, nil
}

// Active returns the currently active cohort.
func (s *CohortService) Active(ctx context.Context) (domain.Cohort, error) {
	return s.cohorts.GetActive(ctx)
}

// List returns cohorts newest first.
func (s *CohortService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Cohort, error) {
	return s.cohorts.List(ctx, opts)
}
