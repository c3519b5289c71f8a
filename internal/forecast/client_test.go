package forecast

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

const validJSON = `{"action":"bet_yes","confidence":0.8,"bet_size_pct":10,"estimated_probability":0.7,"reasoning":"edge vs price","key_factors":["base rate","polling"]}`

type fakeGateway struct {
	responses []GatewayResponse
	errs      []error
	requests  []GatewayRequest
}

func (f *fakeGateway) Invoke(_ context.Context, req GatewayRequest) (GatewayResponse, error) {
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return GatewayResponse{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return GatewayResponse{}, fmt.Errorf("unexpected call %d", i)
}

func newTestClient(gw Gateway) *Client {
	c := NewClient(gw, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.delays = [maxRetries]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	return c
}

func testAgent() domain.Agent {
	return domain.Agent{ID: "gpt-5.2-chat", GatewayID: "openai/gpt-5.2-chat"}
}

func testMarket() domain.Market {
	return domain.Market{ID: "m1", Question: "Will it rain?", YesPrice: 0.4, NoPrice: 0.6}
}

func TestForecast_FirstAttemptStrictSchema(t *testing.T) {
	gw := &fakeGateway{responses: []GatewayResponse{{RawText: validJSON, Cost: 0.01, LatencyMs: 120}}}
	res, err := newTestClient(gw).Forecast(context.Background(), testAgent(), testMarket(), nil)

	require.NoError(t, err)
	require.NotNil(t, res.Prediction)
	assert.Equal(t, domain.ActionBetYes, res.Prediction.Action)
	assert.Equal(t, 0.01, res.Cost)
	assert.Equal(t, int64(120), res.LatencyMs)
	require.Len(t, gw.requests, 1)
	assert.True(t, gw.requests[0].StrictSchema)
}

func TestForecast_RateLimitBackoffThenSuccess(t *testing.T) {
	gw := &fakeGateway{
		errs:      []error{domain.ErrRateLimited, domain.ErrRateLimited},
		responses: []GatewayResponse{{}, {}, {RawText: validJSON, Cost: 0.02}},
	}
	res, err := newTestClient(gw).Forecast(context.Background(), testAgent(), testMarket(), nil)

	require.NoError(t, err)
	require.NotNil(t, res.Prediction)
	require.Len(t, gw.requests, 3)
	// Retries relax the structured-output request.
	assert.False(t, gw.requests[1].StrictSchema)
	assert.False(t, gw.requests[2].StrictSchema)
}

func TestForecast_ExhaustedRetriesReturnsError(t *testing.T) {
	gw := &fakeGateway{errs: []error{
		domain.ErrRateLimited, domain.ErrRateLimited, domain.ErrRateLimited, domain.ErrRateLimited,
	}}
	_, err := newTestClient(gw).Forecast(context.Background(), testAgent(), testMarket(), nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Len(t, gw.requests, 4) // initial attempt + 3 retries
}

func TestForecast_RelaxedParseOnFinalAttempt(t *testing.T) {
	// Loosely typed output: numbers as strings, prose around the object.
	loose := `Here is my answer: {"action":"BET_NO","confidence":"0.6","bet_size_pct":"5","estimated_probability":"0.3","reasoning":"unlikely","key_factors":[]}`
	gw := &fakeGateway{responses: []GatewayResponse{
		{RawText: loose, Cost: 0.01},
		{RawText: loose, Cost: 0.01},
		{RawText: loose, Cost: 0.01},
		{RawText: loose, Cost: 0.01},
	}}
	res, err := newTestClient(gw).Forecast(context.Background(), testAgent(), testMarket(), nil)

	require.NoError(t, err)
	require.NotNil(t, res.Prediction)
	assert.Equal(t, domain.ActionBetNo, res.Prediction.Action)
	assert.Equal(t, 0.6, res.Prediction.Confidence)
	// Spend across all four attempts is accounted for.
	assert.InDelta(t, 0.04, res.Cost, 1e-9)
}

func TestForecast_UnparseableOutputIsForcedPassWithCost(t *testing.T) {
	garbage := GatewayResponse{RawText: "I refuse to answer in JSON.", Cost: 0.005, LatencyMs: 50}
	gw := &fakeGateway{responses: []GatewayResponse{garbage, garbage, garbage, garbage}}
	res, err := newTestClient(gw).Forecast(context.Background(), testAgent(), testMarket(), nil)

	require.NoError(t, err)
	assert.Nil(t, res.Prediction)
	assert.InDelta(t, 0.02, res.Cost, 1e-9)
	assert.Equal(t, "I refuse to answer in JSON.", res.RawText)
}

func TestForecast_ContextCancelAbortsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gw := &fakeGateway{errs: []error{domain.ErrRateLimited}}
	_, err := newTestClient(gw).Forecast(ctx, testAgent(), testMarket(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePrediction_StrictRejectsOutOfRange(t *testing.T) {
	bad := `{"action":"bet_yes","confidence":0.8,"bet_size_pct":40,"estimated_probability":0.7,"reasoning":"r","key_factors":[]}`
	_, err := ParsePrediction(bad, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bet_size_pct")
}

func TestParsePrediction_StrictRejectsUnknownFields(t *testing.T) {
	bad := `{"action":"bet_yes","confidence":0.8,"bet_size_pct":10,"estimated_probability":0.7,"reasoning":"r","key_factors":[],"extra":1}`
	_, err := ParsePrediction(bad, true)
	assert.Error(t, err)
}

func TestParsePrediction_RelaxedStillEnforcesRanges(t *testing.T) {
	bad := `{"action":"bet_yes","confidence":"1.5","bet_size_pct":"10","estimated_probability":"0.7","reasoning":"r"}`
	_, err := ParsePrediction(bad, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confidence")
}

func TestBuildPrompt_IncludesPreviousBets(t *testing.T) {
	prob, conf := 0.55, 0.7
	prev := []domain.Bet{{
		Action:               domain.ActionBetYes,
		MarketPriceAtBet:     0.42,
		EstimatedProbability: &prob,
		Confidence:           &conf,
		CreatedAt:            time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}}
	prompt := BuildPrompt(testMarket(), prev)
	assert.Contains(t, prompt, "Your Previous Bets on This Market")
	assert.Contains(t, prompt, "bet_yes at market price $0.42")

	fresh := BuildPrompt(testMarket(), nil)
	assert.NotContains(t, fresh, "Previous Bets")
}
