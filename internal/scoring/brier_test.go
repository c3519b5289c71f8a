package scoring

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

func TestMarketDifficulty(t *testing.T) {
	assert.Equal(t, 1.0, MarketDifficulty(0.5))
	assert.InDelta(t, 0.286, MarketDifficulty(0.95), 0.001)
	assert.Equal(t, 0.0, MarketDifficulty(0))
	assert.Equal(t, 0.0, MarketDifficulty(1))
	assert.Equal(t, 0.0, MarketDifficulty(-0.1))
}

func TestPnL_WinningYesBet(t *testing.T) {
	// 1000 at price 0.40 on yes, resolved yes: 1000*(1/0.4 - 1) = 1500.
	assert.InDelta(t, 1500.0, PnL(domain.ActionBetYes, 1000, 0.40, domain.ResolutionYes), 1e-9)
}

func TestPnL_LosingBetForfeitsStake(t *testing.T) {
	assert.Equal(t, -1000.0, PnL(domain.ActionBetYes, 1000, 0.40, domain.ResolutionNo))
	assert.Equal(t, -250.0, PnL(domain.ActionBetNo, 250, 0.70, domain.ResolutionYes))
}

func TestPnL_WinningNoBetUsesComplementPrice(t *testing.T) {
	// 500 at yes price 0.70 on no, resolved no: 500*(1/0.3 - 1).
	assert.InDelta(t, 500*(1/0.3-1), PnL(domain.ActionBetNo, 500, 0.70, domain.ResolutionNo), 1e-9)
}

func TestPnL_PassIsZero(t *testing.T) {
	assert.Equal(t, 0.0, PnL(domain.ActionPass, 0, 0.5, domain.ResolutionYes))
}

func TestBrierScore(t *testing.T) {
	assert.InDelta(t, 0.09, BrierScore(0.7, domain.ResolutionYes), 1e-9)
	assert.InDelta(t, 0.49, BrierScore(0.7, domain.ResolutionNo), 1e-9)
	assert.Equal(t, 0.0, BrierScore(1.0, domain.ResolutionYes))
}

func TestDecompose_Empty(t *testing.T) {
	assert.Equal(t, Decomposition{}, Decompose(nil))
}

func TestDecompose_MurphyIdentity(t *testing.T) {
	// The binned decomposition satisfies the identity exactly when forecasts
	// within a decile share one value, so draw each forecast from the decile
	// midpoints.
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		n := 1 + rng.Intn(200)
		samples := make([]domain.CalibrationSample, n)
		for i := range samples {
			p := (float64(rng.Intn(decileBuckets)) + 0.5) / decileBuckets
			samples[i] = domain.CalibrationSample{
				Probability: p,
				ResolvedYes: rng.Float64() < p,
			}
		}

		d := Decompose(samples)
		// Murphy: mean Brier = reliability - resolution + uncertainty.
		require.InDelta(t, MeanBrier(samples), d.Reliability-d.Resolution+d.Uncertainty, 1e-9)
	}
}

func TestDecompose_PerfectlySharpForecaster(t *testing.T) {
	samples := []domain.CalibrationSample{
		{Probability: 1, ResolvedYes: true},
		{Probability: 0, ResolvedYes: false},
		{Probability: 1, ResolvedYes: true},
		{Probability: 0, ResolvedYes: false},
	}
	d := Decompose(samples)
	assert.InDelta(t, 0.0, d.Reliability, 1e-9)
	assert.InDelta(t, 0.25, d.Resolution, 1e-9)
	assert.InDelta(t, 0.25, d.Uncertainty, 1e-9)
}

func TestCalibrationCurve_BucketsAndTopEdge(t *testing.T) {
	samples := []domain.CalibrationSample{
		{Probability: 0.05, ResolvedYes: false},
		{Probability: 0.07, ResolvedYes: true},
		{Probability: 1.0, ResolvedYes: true}, // clamps into the top decile
	}
	curve := CalibrationCurve(samples)
	require.Len(t, curve, 10)

	assert.Equal(t, 2, curve[0].Count)
	assert.InDelta(t, 0.06, curve[0].MeanForecast, 1e-9)
	assert.InDelta(t, 0.5, curve[0].MeanOutcome, 1e-9)

	assert.Equal(t, 1, curve[9].Count)
	assert.InDelta(t, 1.0, curve[9].MeanForecast, 1e-9)

	for i := 1; i < 9; i++ {
		assert.Zero(t, curve[i].Count)
	}
}
