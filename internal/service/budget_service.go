package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// BudgetConfig holds the hard spend cap and the conservative per-round cost
// estimate used to gate new work.
type BudgetConfig struct {
	CapUSD             float64
	EstimatedRoundCost float64
}

// BudgetService enforces the cumulative gateway spend cap. Spend is derived
// from the bets table, never tracked separately, so it survives restarts and
// cannot drift.
type BudgetService struct {
	bets   domain.BetStore
	cfg    BudgetConfig
	logger *slog.Logger
}

// NewBudgetService creates a BudgetService.
func NewBudgetService(bets domain.BetStore, cfg BudgetConfig, logger *slog.Logger) *BudgetService {
	return &BudgetService{
		bets:   bets,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "budget")),
	}
}

// Cap returns the configured spend cap in USD.
func (s *BudgetService) Cap() float64 {
	return s.cfg.CapUSD
}

// TotalSpent returns cumulative gateway spend across all bets ever recorded.
func (s *BudgetService) TotalSpent(ctx context.Context) (float64, error) {
	total, err := s.bets.TotalAPICost(ctx)
	if err != nil {
		return 0, fmt.Errorf("budget: total spent: %w", err)
	}
	return total, nil
}

// CanAffordRound reports whether the estimated cost of one more round fits
// under the cap.
func (s *BudgetService) CanAffordRound(ctx context.Context) (bool, error) {
	spent, err := s.TotalSpent(ctx)
	if err != nil {
		return false, err
	}
	ok := spent+s.cfg.EstimatedRoundCost <= s.cfg.CapUSD
	if !ok {
		s.logger.WarnContext(ctx, "budget exhausted",
			slog.Float64("spent", spent),
			slog.Float64("cap", s.cfg.CapUSD),
		)
	}
	return ok, nil
}

// Summary returns the full spend report: totals against the cap plus
// per-agent, per-round, and daily breakdowns.
func (s *BudgetService) Summary(ctx context.Context) (domain.CostSummary, error) {
	spent, err := s.TotalSpent(ctx)
	if err != nil {
		return domain.CostSummary{}, err
	}

	perAgent, err := s.bets.CostByAgent(ctx)
	if err != nil {
		return domain.CostSummary{}, fmt.Errorf("budget: cost by agent: %w", err)
	}
	perRound, err := s.bets.CostByRound(ctx)
	if err != nil {
		return domain.CostSummary{}, fmt.Errorf("budget: cost by round: %w", err)
	}
	daily, err := s.bets.CostByDay(ctx)
	if err != nil {
		return domain.CostSummary{}, fmt.Errorf("budget: cost by day: %w", err)
	}

	summary := domain.CostSummary{
		TotalSpent:      spent,
		BudgetCap:       s.cfg.CapUSD,
		BudgetRemaining: s.cfg.CapUSD - spent,
		OverBudget:      spent >= s.cfg.CapUSD,
		PerAgent:        perAgent,
		PerRound:        perRound,
		Daily:           daily,
	}
	if summary.BudgetRemaining < 0 {
		summary.BudgetRemaining = 0
	}
	if s.cfg.CapUSD > 0 {
		summary.BudgetPctUsed = spent / s.cfg.CapUSD * 100
	}
	return summary, nil
}
