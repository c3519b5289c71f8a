package domain

import "time"

// EnsembleAgentID is the identifier of the synthetic aggregate agent. It never
// calls the gateway; its bets are derived from the other agents' bets.
const EnsembleAgentID = "ensemble"

// Agent is a forecasting participant. Agents are static identities seeded once
// at startup and immutable afterwards.
type Agent struct {
	ID          string
	DisplayName string
	Provider    string
	GatewayID   string // model identifier understood by the LLM gateway
	CreatedAt   time.Time
}

// IsEnsemble reports whether this is the synthetic ensemble agent.
func (a Agent) IsEnsemble() bool {
	return a.ID == EnsembleAgentID
}

// SeedAgents returns the fixed tournament roster: six concrete agents plus the
// synthetic ensemble agent.
func SeedAgents() []Agent {
	return []Agent{
		{ID: "gemini-3-flash", DisplayName: "Gemini 3 Flash", Provider: "Google", GatewayID: "google/gemini-3-flash-preview"},
		{ID: "grok-4.1-fast", DisplayName: "Grok 4.1 Fast", Provider: "xAI", GatewayID: "x-ai/grok-4.1-fast"},
		{ID: "gpt-5.2-chat", DisplayName: "GPT-5.2 Chat", Provider: "OpenAI", GatewayID: "openai/gpt-5.2-chat"},
		{ID: "deepseek-v3.2", DisplayName: "DeepSeek V3.2", Provider: "DeepSeek", GatewayID: "deepseek/deepseek-v3.2"},
		{ID: "kimi-k2.5", DisplayName: "Kimi K2.5", Provider: "Moonshot AI", GatewayID: "moonshotai/kimi-k2.5"},
		{ID: "qwen-3", DisplayName: "Qwen 3", Provider: "Alibaba", GatewayID: "qwen/qwen3-235b-a22b"},
		{ID: EnsembleAgentID, DisplayName: "Ensemble (Avg)", Provider: "Aggregate", GatewayID: EnsembleAgentID},
	}
}
