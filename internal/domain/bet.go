package domain

import "time"

// BetAction is an agent's decision on a market.
type BetAction string

const (
	ActionBetYes BetAction = "bet_yes"
	ActionBetNo  BetAction = "bet_no"
	ActionPass   BetAction = "pass"
)

// Bet is one agent's recorded decision on one market within one round. It is
// created exactly once by the round orchestrator and mutated exactly once by
// the settlement engine (the settled 0→1 transition); it is otherwise
// immutable. Prompt and raw gateway output are retained as an audit trail.
type Bet struct {
	ID       int64
	AgentID  string
	MarketID string
	CohortID string
	RoundID  string

	Action               BetAction
	Confidence           *float64
	BetSizePct           *float64
	BetAmount            *float64
	EstimatedProbability *float64
	MarketPriceAtBet     float64
	Reasoning            string
	KeyFactors           []string
	PromptText           string
	RawResponse          string

	Settled    bool
	PnL        float64
	BrierScore *float64

	APICost      float64
	APILatencyMs int64
	CreatedAt    time.Time
}

// IsPass reports whether the bet is a pass (no stake placed).
func (b Bet) IsPass() bool {
	return b.Action == ActionPass
}
