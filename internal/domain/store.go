package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AgentStore persists the static agent roster.
type AgentStore interface {
	// Seed inserts agents, ignoring ones that already exist.
	Seed(ctx context.Context, agents []Agent) error
	GetByID(ctx context.Context, id string) (Agent, error)
	List(ctx context.Context) ([]Agent, error)
	// ListForecasters returns every agent except the ensemble.
	ListForecasters(ctx context.Context) ([]Agent, error)
}

// CohortStore persists cohorts and drives their lifecycle.
type CohortStore interface {
	// Rollover demotes the current active cohort to settling, inserts c as
	// the new active cohort, and seeds a ledger row at bankroll for every
	// agent — all inside a single transaction.
	Rollover(ctx context.Context, c Cohort, agentIDs []string, bankroll float64) error
	GetByID(ctx context.Context, id string) (Cohort, error)
	GetActive(ctx context.Context) (Cohort, error)
	List(ctx context.Context, opts ListOpts) ([]Cohort, error)
	IncrementMarketCount(ctx context.Context, id string, delta int) error
	// CompleteSettled transitions every settling cohort with zero unsettled
	// bets to completed and returns how many cohorts moved.
	CompleteSettled(ctx context.Context) (int64, error)
}

// LedgerStore persists per (cohort, agent) bankrolls. Mutations are atomic
// increments relative to the stored value, never read-modify-write.
type LedgerStore interface {
	Bankroll(ctx context.Context, cohortID, agentID string) (float64, error)
	// Add atomically adjusts a bankroll by delta (negative to debit).
	Add(ctx context.Context, cohortID, agentID string, delta float64) error
	ListByCohort(ctx context.Context, cohortID string) ([]Ledger, error)
}

// MarketStore persists market snapshots.
type MarketStore interface {
	UpsertBatch(ctx context.Context, markets []Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	// ListOpen returns unresolved markets ordered by 24h volume descending.
	ListOpen(ctx context.Context, limit int) ([]Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	// SetResolution records a terminal resolution; open markets only.
	SetResolution(ctx context.Context, id string, res MarketResolution, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// RoundStore persists rounds.
type RoundStore interface {
	Create(ctx context.Context, r Round) error
	SetStatus(ctx context.Context, id string, status RoundStatus) error
	GetByID(ctx context.Context, id string) (Round, error)
	ListRecent(ctx context.Context, limit int) ([]Round, error)
}

// BetStore persists bets and serves the aggregate queries the scoring and
// budget components need.
type BetStore interface {
	// Insert creates a bet row and fills in b.ID. Inserting the same
	// (agent, market, round) twice is a no-op that backfills b.ID from
	// the existing row.
	Insert(ctx context.Context, b *Bet) error
	ListByRound(ctx context.Context, roundID string) ([]Bet, error)
	// ListUnsettled returns open non-pass bets, the settlement work queue.
	ListUnsettled(ctx context.Context) ([]Bet, error)
	// ListRecentForMarket returns the agent's latest bets on one market in
	// one cohort, newest first, for re-evaluation context.
	ListRecentForMarket(ctx context.Context, agentID, marketID, cohortID string, limit int) ([]Bet, error)
	// Settle performs the one-time settled transition. Settling an already
	// settled bet is a no-op.
	Settle(ctx context.Context, betID int64, pnl float64, brier *float64) error
	// SettleOpenPasses closes out all open pass bets on a market.
	SettleOpenPasses(ctx context.Context, marketID string) (int64, error)

	TotalAPICost(ctx context.Context) (float64, error)
	CostByAgent(ctx context.Context) ([]AgentCost, error)
	CostByRound(ctx context.Context) ([]RoundCost, error)
	CostByDay(ctx context.Context) ([]DailyCost, error)

	// AgentStats aggregates the leaderboard row per agent; cohortID nil
	// means all-time. AvgDifficulty and AdjustedPnL are left for the
	// scoring service to fill in.
	AgentStats(ctx context.Context, cohortID *string) ([]AgentStats, error)
	// ListNonPassPrices returns market prices observed at bet time for an
	// agent's non-pass bets, for the difficulty aggregate.
	ListNonPassPrices(ctx context.Context, agentID string, cohortID *string) ([]float64, error)
	// ListCalibrationSamples returns (probability, outcome) pairs for
	// settled, scored bets, optionally scoped to one agent and cohort.
	ListCalibrationSamples(ctx context.Context, agentID, cohortID *string) ([]CalibrationSample, error)
	// ListSettled returns settled non-pass bets with market questions,
	// ordered by placement time ascending, for correlation adjustment.
	ListSettled(ctx context.Context, cohortID *string) ([]SettledBet, error)
}
