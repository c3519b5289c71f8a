package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/forecastarena/internal/domain"
	"github.com/alanyoungcy/forecastarena/internal/forecast"
)

func TestInvoke_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "{\"action\":\"pass\"}"}}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_cost": 0.0123}
		}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL, APIKey: "test-key"})
	resp, err := c.Invoke(context.Background(), forecast.GatewayRequest{
		Model:        "openai/gpt-5.2-chat",
		SystemPrompt: "sys",
		UserPrompt:   "user",
		StrictSchema: true,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"action":"pass"}`, resp.RawText)
	assert.Equal(t, 0.0123, resp.Cost)
	assert.GreaterOrEqual(t, resp.LatencyMs, int64(0))

	assert.Equal(t, "openai/gpt-5.2-chat", got.Model)
	assert.Zero(t, got.Temperature)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	require.Len(t, got.Plugins, 1)
	assert.Equal(t, "web", got.Plugins[0].ID)
}

func TestInvoke_RelaxedFormatOnRetryRequests(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[],"usage":{}}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Invoke(context.Background(), forecast.GatewayRequest{Model: "m", StrictSchema: false})
	require.NoError(t, err)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestInvoke_RateLimitMapsToDomainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	_, err := c.Invoke(context.Background(), forecast.GatewayRequest{Model: "m"})
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestInvoke_CostFallsBackToTokenEstimate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"content": "x"}}],
			"usage": {"prompt_tokens": 1000, "completion_tokens": 500}
		}`))
	}))
	defer srv.Close()

	c := New(ClientConfig{BaseURL: srv.URL, APIKey: "k"})
	resp, err := c.Invoke(context.Background(), forecast.GatewayRequest{Model: "m"})
	require.NoError(t, err)
	assert.InDelta(t, 1000*promptTokenCost+500*completionTokenCost, resp.Cost, 1e-12)
}
