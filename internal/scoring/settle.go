// Package scoring holds the pure tournament math: bet settlement formulas,
// Brier score decomposition, market difficulty, and correlated-market
// clustering. Nothing in this package touches storage or the network.
package scoring

import "github.com/alanyoungcy/forecastarena/internal/domain"

// PnL computes the realized profit or loss for a settled bet.
//
//	bet_yes, resolved yes: betAmount * (1/price - 1)
//	bet_no,  resolved no:  betAmount * (1/(1-price) - 1)
//	wrong direction:       -betAmount
//	pass:                  0
//
// price is the yes price observed at bet time, not at resolution.
func PnL(action domain.BetAction, betAmount, priceAtBet float64, outcome domain.MarketResolution) float64 {
	switch action {
	case domain.ActionBetYes:
		if outcome == domain.ResolutionYes {
			if priceAtBet <= 0 {
				return 0
			}
			return betAmount * (1/priceAtBet - 1)
		}
		return -betAmount
	case domain.ActionBetNo:
		if outcome == domain.ResolutionNo {
			if priceAtBet >= 1 {
				return 0
			}
			return betAmount * (1/(1-priceAtBet) - 1)
		}
		return -betAmount
	default:
		return 0
	}
}

// BrierScore is the squared error of a single probability forecast against
// the realized binary outcome: (p - actual)^2 with actual 1 for yes, 0 for no.
func BrierScore(estimatedProbability float64, outcome domain.MarketResolution) float64 {
	actual := 0.0
	if outcome == domain.ResolutionYes {
		actual = 1.0
	}
	d := estimatedProbability - actual
	return d * d
}
