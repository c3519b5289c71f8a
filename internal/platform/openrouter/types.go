package openrouter

import "encoding/json"

// predictionSchema is the JSON schema sent with strict structured-output
// requests. It mirrors domain.Prediction.
var predictionSchema = json.RawMessage(`{
  "name": "prediction",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "action": {"type": "string", "enum": ["bet_yes", "bet_no", "pass"]},
      "confidence": {"type": "number", "minimum": 0, "maximum": 1},
      "bet_size_pct": {"type": "number", "minimum": 1, "maximum": 25},
      "estimated_probability": {"type": "number", "minimum": 0, "maximum": 1},
      "reasoning": {"type": "string"},
      "key_factors": {"type": "array", "items": {"type": "string"}}
    },
    "required": ["action", "confidence", "bet_size_pct", "estimated_probability", "reasoning", "key_factors"],
    "additionalProperties": false
  }
}`)

// chatRequest is the OpenRouter chat-completions request payload.
type chatRequest struct {
	Model          string          `json:"model"`
	Plugins        []plugin        `json:"plugins,omitempty"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type plugin struct {
	ID         string `json:"id"`
	MaxResults int    `json:"max_results,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

// chatResponse is the subset of the chat-completions response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int      `json:"prompt_tokens"`
		CompletionTokens int      `json:"completion_tokens"`
		TotalCost        *float64 `json:"total_cost"`
	} `json:"usage"`
}
