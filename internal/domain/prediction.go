package domain

import "fmt"

// Prediction is a validated structured forecast produced by an agent for a
// single market.
type Prediction struct {
	Action               BetAction `json:"action"`
	Confidence           float64   `json:"confidence"`
	BetSizePct           float64   `json:"bet_size_pct"`
	EstimatedProbability float64   `json:"estimated_probability"`
	Reasoning            string    `json:"reasoning"`
	KeyFactors           []string  `json:"key_factors"`
}

// Validate checks the prediction against the schema bounds: confidence and
// estimated probability in [0,1], bet size in [1,25] percent (zero allowed
// for a pass), and a known action.
func (p Prediction) Validate() error {
	switch p.Action {
	case ActionBetYes, ActionBetNo, ActionPass:
	default:
		return fmt.Errorf("prediction: unknown action %q", p.Action)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("prediction: confidence %v outside [0,1]", p.Confidence)
	}
	minSize := 1.0
	if p.Action == ActionPass {
		minSize = 0
	}
	if p.BetSizePct < minSize || p.BetSizePct > 25 {
		return fmt.Errorf("prediction: bet_size_pct %v outside [%v,25]", p.BetSizePct, minSize)
	}
	if p.EstimatedProbability < 0 || p.EstimatedProbability > 1 {
		return fmt.Errorf("prediction: estimated_probability %v outside [0,1]", p.EstimatedProbability)
	}
	return nil
}
