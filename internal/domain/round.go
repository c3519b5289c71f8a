package domain

import "time"

// RoundStatus represents the lifecycle state of a round.
type RoundStatus string

const (
	RoundStatusPending    RoundStatus = "pending"
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusCompleted  RoundStatus = "completed"
)

// Round is one execution batch: every (market, agent) pair it covers produces
// a bet row before the round moves to completed. A round interrupted mid-way
// stays in_progress and is left as-is; the next trigger opens a fresh round
// rather than resuming it.
type Round struct {
	ID        string
	CohortID  string
	MarketIDs []string
	Status    RoundStatus
	CreatedAt time.Time
}
