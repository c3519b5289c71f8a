// Package openrouter is the REST client for the OpenRouter chat-completions
// gateway, through which every concrete agent is invoked.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/forecast"
)

const (
	completionsPath = "/api/v1/chat/completions"

	// Deterministic sampling: every forecast request runs at temperature 0.
	temperature = 0.0
	maxTokens   = 1024

	// webMaxResults bounds the research plugin's search results per request.
	webMaxResults = 5
)

// Fallback per-token pricing used when the gateway omits an exact cost.
const (
	promptTokenCost     = 0.000001
	completionTokenCost = 0.000002
)

// ClientConfig holds connection parameters for the OpenRouter client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Referer string
	Title   string
	// RequestsPerMinute throttles outbound calls; 0 disables the limiter.
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client implements forecast.Gateway against the OpenRouter HTTP API.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates an OpenRouter client.
func New(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// Invoke sends one completion request with web research enabled and returns
// the raw output text together with the incurred cost and latency. Rate
// limits surface as domain.ErrRateLimited so callers can back off.
func (c *Client) Invoke(ctx context.Context, req forecast.GatewayRequest) (forecast.GatewayResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return forecast.GatewayResponse{}, fmt.Errorf("openrouter: limiter: %w", err)
		}
	}

	format := &responseFormat{Type: "json_object"}
	if req.StrictSchema {
		format = &responseFormat{Type: "json_schema", JSONSchema: predictionSchema}
	}

	body := chatRequest{
		Model:       req.Model,
		Plugins:     []plugin{{ID: "web", MaxResults: webMaxResults}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		ResponseFormat: format,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+completionsPath, bytes.NewReader(payload))
	if err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		httpReq.Header.Set("X-Title", c.cfg.Title)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: read response: %w", err)
	}
	latency := time.Since(start).Milliseconds()

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: %w", err)
	}

	var chat chatResponse
	if err := json.Unmarshal(respBody, &chat); err != nil {
		return forecast.GatewayResponse{}, fmt.Errorf("openrouter: decode response: %w", err)
	}

	raw := ""
	if len(chat.Choices) > 0 {
		raw = chat.Choices[0].Message.Content
	}

	cost := 0.0
	if chat.Usage.TotalCost != nil {
		cost = *chat.Usage.TotalCost
	} else {
		cost = float64(chat.Usage.PromptTokens)*promptTokenCost +
			float64(chat.Usage.CompletionTokens)*completionTokenCost
	}

	return forecast.GatewayResponse{
		RawText:   raw,
		Cost:      cost,
		LatencyMs: latency,
	}, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	switch statusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, body)
	}
}
