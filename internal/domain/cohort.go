package domain

import "time"

// CohortStatus represents the lifecycle state of a cohort.
type CohortStatus string

const (
	CohortStatusActive    CohortStatus = "active"
	CohortStatusSettling  CohortStatus = "settling"
	CohortStatusCompleted CohortStatus = "completed"
)

// DefaultInitialBankroll is the bankroll every agent ledger is seeded with
// when a cohort is created. Leaderboard ROI is computed against this value.
const DefaultInitialBankroll = 10_000.0

// Cohort is a fixed weekly competition window. Exactly one cohort is active at
// a time; a superseded cohort moves to settling and then to completed once
// every bet belonging to it has settled.
type Cohort struct {
	ID          string // ISO-week identifier, e.g. "2026-W35"
	StartDate   time.Time
	EndDate     time.Time
	Status      CohortStatus
	MarketCount int
	CreatedAt   time.Time
}

// Ledger is the per (cohort, agent) bankroll. Debited by the round
// orchestrator at bet placement and credited back by settlement; no other
// writer exists.
type Ledger struct {
	CohortID string
	AgentID  string
	Bankroll float64
}
