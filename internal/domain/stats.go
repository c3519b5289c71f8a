package domain

import "time"

// AgentStats is one leaderboard row: per-agent aggregates over bets,
// optionally scoped to a single cohort.
type AgentStats struct {
	AgentID       string
	DisplayName   string
	Provider      string
	Bankroll      float64
	TotalPnL      float64 // sum of settled pnl
	ROIPct        float64 // TotalPnL as % of the initial bankroll
	BrierScore    float64 // mean over settled scored bets
	TotalBets     int     // non-pass bets
	WinRate       float64 // settled non-pass non-voided bets with pnl > 0
	PassRate      float64
	AvgConfidence float64 // non-pass bets only
	AvgBetSize    float64 // non-pass bets only
	TotalAPICost  float64
	AvgDifficulty float64 // mean binary entropy of price at bet time
	AdjustedPnL   float64 // correlation-adjusted; equals TotalPnL when unset
}

// CostSummary is the full spend report against the hard budget cap.
type CostSummary struct {
	TotalSpent      float64
	BudgetCap       float64
	BudgetRemaining float64
	BudgetPctUsed   float64
	OverBudget      bool
	PerAgent        []AgentCost
	PerRound        []RoundCost
	Daily           []DailyCost
}

// AgentCost is gateway spend attributed to one agent.
type AgentCost struct {
	AgentID     string
	DisplayName string
	Cost        float64
}

// RoundCost is gateway spend attributed to one round.
type RoundCost struct {
	RoundID   string
	CreatedAt time.Time
	Cost      float64
}

// DailyCost is gateway spend for one calendar day plus the running total.
type DailyCost struct {
	Date       string // YYYY-MM-DD
	Cost       float64
	Cumulative float64
}

// CalibrationSample pairs a forecast probability with its realized binary
// outcome; the input to Brier decomposition and calibration curves.
type CalibrationSample struct {
	Probability float64
	ResolvedYes bool
}

// SettledBet is the slice of a settled bet needed for correlation-adjusted
// P&L: who bet on what, the realized pnl, and when the bet was placed.
type SettledBet struct {
	AgentID   string
	MarketID  string
	Question  string
	PnL       float64
	CreatedAt time.Time
}
