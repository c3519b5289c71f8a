package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/alanyoungcy/forecastarena/internal/domain"
)

// ParsePrediction decodes raw model output into a validated prediction.
//
// In strict mode the payload must be a bare JSON object with exactly the
// schema fields. In relaxed mode the object may be embedded in surrounding
// prose, numbers may arrive as strings, and the action is matched
// case-insensitively. Range validation applies in both modes.
func ParsePrediction(raw string, strict bool) (*domain.Prediction, error) {
	if strict {
		return parseStrict(raw)
	}
	return parseRelaxed(raw)
}

func parseStrict(raw string) (*domain.Prediction, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var p domain.Prediction
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parse prediction: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func parseRelaxed(raw string) (*domain.Prediction, error) {
	payload := extractObject(raw)
	if payload == "" {
		return nil, fmt.Errorf("parse prediction: no JSON object in output")
	}

	var loose map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &loose); err != nil {
		return nil, fmt.Errorf("parse prediction: %w", err)
	}

	p := domain.Prediction{}

	action, err := looseString(loose["action"])
	if err != nil {
		return nil, fmt.Errorf("parse prediction: action: %w", err)
	}
	p.Action = domain.BetAction(strings.ToLower(strings.TrimSpace(action)))

	if p.Confidence, err = looseFloat(loose["confidence"]); err != nil {
		return nil, fmt.Errorf("parse prediction: confidence: %w", err)
	}
	if p.BetSizePct, err = looseFloat(loose["bet_size_pct"]); err != nil {
		return nil, fmt.Errorf("parse prediction: bet_size_pct: %w", err)
	}
	if p.EstimatedProbability, err = looseFloat(loose["estimated_probability"]); err != nil {
		return nil, fmt.Errorf("parse prediction: estimated_probability: %w", err)
	}
	if p.Reasoning, err = looseString(loose["reasoning"]); err != nil {
		return nil, fmt.Errorf("parse prediction: reasoning: %w", err)
	}

	if kf, ok := loose["key_factors"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(kf, &items); err != nil {
			return nil, fmt.Errorf("parse prediction: key_factors: %w", err)
		}
		for _, it := range items {
			s, err := looseString(it)
			if err != nil {
				return nil, fmt.Errorf("parse prediction: key_factors: %w", err)
			}
			p.KeyFactors = append(p.KeyFactors, s)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// extractObject returns the outermost {...} span of s, or "" when none exists.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func looseString(raw json.RawMessage) (string, error) {
	if raw == nil {
		return "", fmt.Errorf("missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// Non-string scalar: render as-is.
	return string(bytes.TrimSpace(raw)), nil
}

func looseFloat(raw json.RawMessage) (float64, error) {
	if raw == nil {
		return 0, fmt.Errorf("missing")
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("not a number: %s", raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return f, nil
}
