package domain

import (
	"context"
	"time"
)

// MarketResolution represents the resolution state of a market. Once a market
// leaves ResolutionOpen it is terminal and never changes again.
type MarketResolution string

const (
	ResolutionOpen   MarketResolution = "open"
	ResolutionYes    MarketResolution = "yes"
	ResolutionNo     MarketResolution = "no"
	ResolutionVoided MarketResolution = "voided"
)

// Terminal reports whether the resolution is final.
func (r MarketResolution) Terminal() bool {
	return r == ResolutionYes || r == ResolutionNo || r == ResolutionVoided
}

// Market is a snapshot of one external binary prediction market. Prices are
// refreshed by market sync; the resolution field is written exactly once by
// the settlement engine.
type Market struct {
	ID          string
	Question    string
	Description string
	Slug        string
	ConditionID string
	YesPrice    float64
	NoPrice     float64
	Volume24h   float64
	EndDate     *time.Time
	Resolution  MarketResolution
	ResolvedAt  *time.Time
	FetchedAt   time.Time
}

// ResolutionCheck is the answer from the external resolution oracle for a
// single market.
type ResolutionCheck struct {
	Resolved bool
	Outcome  MarketResolution // yes, no, or voided when Resolved
}

// MarketFeed is the external market collaborator: it supplies admissible
// market snapshots and answers resolution queries.
type MarketFeed interface {
	// ListAdmissibleMarkets returns the filtered, tradeable market set.
	ListAdmissibleMarkets(ctx context.Context) ([]Market, error)
	// CheckResolution queries the resolution oracle for a single market.
	CheckResolution(ctx context.Context, marketID string) (ResolutionCheck, error)
}
