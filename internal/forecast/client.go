// Package forecast implements the forecast client: it asks one agent for a
// structured prediction on one market, with bounded retries and a
// strict-then-relaxed output validation ladder.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// Gateway is the LLM transport the client speaks through. Implementations
// surface rate limits as domain.ErrRateLimited; every other error is treated
// as transient.
type Gateway interface {
	Invoke(ctx context.Context, req GatewayRequest) (GatewayResponse, error)
}

// GatewayRequest is a single completion request for one agent and market.
type GatewayRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	// StrictSchema requests schema-enforced structured output. When false
	// the gateway falls back to plain JSON-object output.
	StrictSchema bool
}

// GatewayResponse carries the raw model output plus the incurred spend.
type GatewayResponse struct {
	RawText   string
	Cost      float64
	LatencyMs int64
}

// Result is the outcome of one forecast request. Prediction is nil when the
// model could not produce a valid structured prediction (a forced pass);
// cost and latency reflect real spend even then.
type Result struct {
	Prediction *domain.Prediction
	Prompt     string
	RawText    string
	Cost       float64
	LatencyMs  int64
}

const maxRetries = 3

var retryDelays = [maxRetries]time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Client issues forecast requests with deterministic sampling through a
// Gateway and validates the structured output.
type Client struct {
	gateway Gateway
	logger  *slog.Logger
	delays  [maxRetries]time.Duration
}

// NewClient creates a forecast client.
func NewClient(gateway Gateway, logger *slog.Logger) *Client {
	return &Client{
		gateway: gateway,
		logger:  logger.With(slog.String("component", "forecast")),
		delays:  retryDelays,
	}
}

// WithRetryDelays overrides the default backoff schedule and returns the
// client.
func (c *Client) WithRetryDelays(delays [maxRetries]time.Duration) *Client {
	c.delays = delays
	return c
}

// Forecast asks agent for a prediction on market. previous holds the agent's
// most recent prior bets on the same market within the same cohort, newest
// first, for re-evaluation context.
//
// The first attempt requests strict schema output; retry attempts relax to
// plain JSON-object output. Rate limits and transient failures back off
// 1s/2s/4s for up to three retries. When every attempt fails the accumulated
// cost is still returned alongside the error; the caller records a forced
// pass with that cost.
func (c *Client) Forecast(ctx context.Context, agent domain.Agent, market domain.Market, previous []domain.Bet) (Result, error) {
	prompt := BuildPrompt(market, previous)
	res := Result{Prompt: prompt}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := c.gateway.Invoke(ctx, GatewayRequest{
			Model:        agent.GatewayID,
			SystemPrompt: SystemPrompt,
			UserPrompt:   prompt,
			StrictSchema: attempt == 0,
		})
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			lastErr = err
			if errors.Is(err, domain.ErrRateLimited) {
				c.logger.WarnContext(ctx, "gateway rate limited",
					slog.String("agent", agent.ID),
					slog.Int("attempt", attempt),
				)
			}
			if attempt < maxRetries {
				if serr := sleepCtx(ctx, c.delays[attempt]); serr != nil {
					return res, serr
				}
				continue
			}
			return res, fmt.Errorf("forecast: agent %s market %s: %w", agent.ID, market.ID, lastErr)
		}

		res.RawText = resp.RawText
		res.Cost += resp.Cost
		res.LatencyMs += resp.LatencyMs

		// Strict validation until the final attempt, which accepts loosely
		// typed JSON before giving up.
		pred, perr := ParsePrediction(resp.RawText, attempt < maxRetries)
		if perr != nil && attempt < maxRetries {
			lastErr = perr
			if serr := sleepCtx(ctx, c.delays[attempt]); serr != nil {
				return res, serr
			}
			continue
		}
		if perr != nil {
			// Malformed output is a forced pass, not an error: the spend
			// already happened and must be accounted for.
			c.logger.WarnContext(ctx, "unparseable prediction, forcing pass",
				slog.String("agent", agent.ID),
				slog.String("market", market.ID),
				slog.String("error", perr.Error()),
			)
			res.Prediction = nil
			return res, nil
		}

		res.Prediction = pred
		return res, nil
	}

	return res, fmt.Errorf("forecast: agent %s market %s: %w", agent.ID, market.ID, lastErr)
}

// sleepCtx waits for d, aborting early when ctx is cancelled. Only the
// calling goroutine is suspended.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
