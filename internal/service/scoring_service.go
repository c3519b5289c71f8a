package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/scoring"
)

// ScoringService assembles leaderboards and per-agent skill diagnostics from
// the bet history.
type ScoringService struct {
	bets   domain.BetStore
	logger *slog.Logger
}

// NewScoringService creates a ScoringService.
func NewScoringService(bets domain.BetStore, logger *slog.Logger) *ScoringService {
	return &ScoringService{
		bets:   bets,
		logger: logger.With(slog.String("component", "scoring")),
	}
}

// Leaderboard returns one row per agent with the full stat set, including
// average market difficulty and correlation-adjusted P&L. A nil cohortID
// means all-time.
func (s *ScoringService) Leaderboard(ctx context.Context, cohortID *string) ([]domain.AgentStats, error) {
	stats, err := s.bets.AgentStats(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("scoring: agent stats: %w", err)
	}

	for i := range stats {
		prices, err := s.bets.ListNonPassPrices(ctx, stats[i].AgentID, cohortID)
		if err != nil {
			return nil, fmt.Errorf("scoring: prices %s: %w", stats[i].AgentID, err)
		}
		if len(prices) > 0 {
			var sum float64
			for _, p := range prices {
				sum += scoring.MarketDifficulty(p)
			}
			stats[i].AvgDifficulty = sum / float64(len(prices))
		}
	}

	adjusted, err := s.adjustedPnL(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		if v, ok := adjusted[stats[i].AgentID]; ok {
			stats[i].AdjustedPnL = v
		} else {
			stats[i].AdjustedPnL = stats[i].TotalPnL
		}
	}

	return stats, nil
}

// adjustedPnL clusters near-duplicate markets by question similarity and
// sums, per agent, only the chronologically earliest settled bet in each
// cluster.
func (s *ScoringService) adjustedPnL(ctx context.Context, cohortID *string) (map[string]float64, error) {
	settled, err := s.bets.ListSettled(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("scoring: settled bets: %w", err)
	}
	if len(settled) == 0 {
		return map[string]float64{}, nil
	}

	seen := make(map[string]struct{})
	markets := make([]domain.Market, 0)
	for _, b := range settled {
		if _, ok := seen[b.MarketID]; ok {
			continue
		}
		seen[b.MarketID] = struct{}{}
		markets = append(markets, domain.Market{ID: b.MarketID, Question: b.Question})
	}

	clusters := scoring.DetectClusters(markets)
	return scoring.AdjustedPnL(settled, clusters), nil
}

// Clusters returns the market-to-cluster assignment over the settled bet
// universe, for inspection.
func (s *ScoringService) Clusters(ctx context.Context, cohortID *string) (map[string]string, error) {
	settled, err := s.bets.ListSettled(ctx, cohortID)
	if err != nil {
		return nil, fmt.Errorf("scoring: settled bets: %w", err)
	}

	seen := make(map[string]struct{})
	markets := make([]domain.Market, 0)
	for _, b := range settled {
		if _, ok := seen[b.MarketID]; ok {
			continue
		}
		seen[b.MarketID] = struct{}{}
		markets = append(markets, domain.Market{ID: b.MarketID, Question: b.Question})
	}
	return scoring.DetectClusters(markets), nil
}

// CalibrationCurve returns an agent's decile calibration buckets over its
// settled scored bets.
func (s *ScoringService) CalibrationCurve(ctx context.Context, agentID string, cohortID *string) ([]scoring.CalibrationBucket, error) {
	samples, err := s.bets.ListCalibrationSamples(ctx, &agentID, cohortID)
	if err != nil {
		return nil, fmt.Errorf("scoring: calibration samples %s: %w", agentID, err)
	}
	return scoring.CalibrationCurve(samples), nil
}

// Decomposition returns the Murphy decomposition of an agent's Brier score.
func (s *ScoringService) Decomposition(ctx context.Context, agentID string, cohortID *string) (scoring.Decomposition, error) {
	samples, err := s.bets.ListCalibrationSamples(ctx, &agentID, cohortID)
	if err != nil {
		return scoring.Decomposition{}, fmt.Errorf("scoring: calibration samples %s: %w", agentID, err)
	}
	return scoring.Decompose(samples), nil
}
