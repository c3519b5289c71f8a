package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/scoring"
)

// addSettledBet records a settled non-pass bet directly.
func addSettledBet(db *memDB, agentID, marketID string, pnl, price float64, estProb, brier float64) {
	db.nextBetID++
	db.bets = append(db.bets, &domain.Bet{
		ID: db.nextBetID, AgentID: agentID, MarketID: marketID,
		CohortID: "2026-W10", RoundID: "r1",
		Action: domain.ActionBetYes, MarketPriceAtBet: price,
		EstimatedProbability: &estProb,
		Settled:              true, PnL: pnl, BrierScore: &brier,
		CreatedAt: db.tick(),
	})
}

func newScoringEnv(t *testing.T) (*memDB, *ScoringService) {
	t.Helper()
	db := newMemDB()
	require.NoError(t, (&memAgentStore{db}).Seed(context.Background(), []domain.Agent{
		{ID: "alpha", DisplayName: "Alpha"},
		{ID: "beta", DisplayName: "Beta"},
	}))
	return db, NewScoringService(&memBetStore{db}, testLogger())
}

func TestLeaderboard_AvgDifficulty(t *testing.T) {
	db, svc := newScoringEnv(t)
	db.markets["m1"] = &domain.Market{ID: "m1", Question: "coin flip", Resolution: domain.ResolutionYes}
	db.markets["m2"] = &domain.Market{ID: "m2", Question: "sure thing", Resolution: domain.ResolutionYes}

	addSettledBet(db, "alpha", "m1", 100, 0.5, 0.7, 0.09) // entropy 1.0
	addSettledBet(db, "alpha", "m2", 10, 0.9, 0.95, 0.0025)

	stats, err := svc.Leaderboard(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "alpha", stats[0].AgentID)
	want := (scoring.MarketDifficulty(0.5) + scoring.MarketDifficulty(0.9)) / 2
	assert.InDelta(t, want, stats[0].AvgDifficulty, 1e-9)
	assert.Zero(t, stats[1].AvgDifficulty) // beta never bet
}

func TestLeaderboard_AdjustedPnLCountsEarliestPerCluster(t *testing.T) {
	db, svc := newScoringEnv(t)
	// Near-duplicate questions cluster together; the unrelated one stands alone.
	db.markets["m1"] = &domain.Market{ID: "m1", Question: "Will Chelsea win the Premier League title in 2026?", Resolution: domain.ResolutionYes}
	db.markets["m2"] = &domain.Market{ID: "m2", Question: "Will Chelsea win the 2026 Premier League title outright?", Resolution: domain.ResolutionYes}
	db.markets["m3"] = &domain.Market{ID: "m3", Question: "Will bitcoin close above 150k?", Resolution: domain.ResolutionYes}

	addSettledBet(db, "alpha", "m1", 100, 0.5, 0.7, 0.09) // earliest in cluster
	addSettledBet(db, "alpha", "m2", 250, 0.5, 0.7, 0.09) // same cluster, dropped
	addSettledBet(db, "alpha", "m3", 40, 0.5, 0.7, 0.09)

	stats, err := svc.Leaderboard(context.Background(), nil)
	require.NoError(t, err)

	alpha := stats[0]
	require.Equal(t, "alpha", alpha.AgentID)
	assert.InDelta(t, 390.0, alpha.TotalPnL, 1e-9)
	assert.InDelta(t, 140.0, alpha.AdjustedPnL, 1e-9)
}

func TestLeaderboard_AdjustedPnLDefaultsToTotal(t *testing.T) {
	db, svc := newScoringEnv(t)
	db.markets["m1"] = &domain.Market{ID: "m1", Question: "q", Resolution: domain.ResolutionOpen}

	// An unsettled bet contributes nothing to the adjusted view.
	db.nextBetID++
	db.bets = append(db.bets, &domain.Bet{
		ID: db.nextBetID, AgentID: "alpha", MarketID: "m1",
		CohortID: "2026-W10", RoundID: "r1",
		Action: domain.ActionBetYes, MarketPriceAtBet: 0.5, CreatedAt: db.tick(),
	})

	stats, err := svc.Leaderboard(context.Background(), nil)
	require.NoError(t, err)
	for _, st := range stats {
		assert.Equal(t, st.TotalPnL, st.AdjustedPnL)
	}
}

func TestCalibrationCurveAndDecomposition(t *testing.T) {
	db, svc := newScoringEnv(t)
	db.markets["m1"] = &domain.Market{ID: "m1", Question: "q1", Resolution: domain.ResolutionYes}
	db.markets["m2"] = &domain.Market{ID: "m2", Question: "q2", Resolution: domain.ResolutionNo}

	addSettledBet(db, "alpha", "m1", 100, 0.5, 0.75, 0.0625)
	addSettledBet(db, "alpha", "m2", -50, 0.5, 0.72, 0.5184)

	curve, err := svc.CalibrationCurve(context.Background(), "alpha", nil)
	require.NoError(t, err)
	require.Len(t, curve, 10)

	// Both forecasts land in the [0.7, 0.8) decile.
	bucket := curve[7]
	assert.Equal(t, 2, bucket.Count)
	assert.InDelta(t, 0.735, bucket.MeanForecast, 1e-9)
	assert.InDelta(t, 0.5, bucket.MeanOutcome, 1e-9)

	dec, err := svc.Decomposition(context.Background(), "alpha", nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, dec.Uncertainty, 1e-9) // base rate 0.5
}

func TestClusters(t *testing.T) {
	db, svc := newScoringEnv(t)
	db.markets["m1"] = &domain.Market{ID: "m1", Question: "Will Chelsea win the Premier League title in 2026?", Resolution: domain.ResolutionYes}
	db.markets["m2"] = &domain.Market{ID: "m2", Question: "Will Chelsea win the 2026 Premier League title outright?", Resolution: domain.ResolutionYes}

	addSettledBet(db, "alpha", "m1", 100, 0.5, 0.7, 0.09)
	addSettledBet(db, "beta", "m2", 50, 0.5, 0.7, 0.09)

	clusters, err := svc.Clusters(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, clusters["m1"], clusters["m2"])
}
