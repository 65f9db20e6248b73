package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"dealscope/internal/port"
)

// DecodeEnvelope parses a model's text answer into an ExtractOutput. Code fences are tolerated;
// anything else that is not a {"fields": {...}, "confidence": n} object is a MalformedResponseError.
func DecodeEnvelope(provider, text, model, prompt string) (*port.ExtractOutput, error) {
	raw := stripCodeFence(text)

	var env struct {
		Fields     json.RawMessage `json:"fields"`
		Confidence *float64        `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, &MalformedResponseError{Provider: provider, Raw: text, Err: fmt.Errorf("parsing model JSON output: %w", err)}
	}
	trimmed := bytes.TrimSpace(env.Fields)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &MalformedResponseError{Provider: provider, Raw: text, Err: errors.New(`missing "fields" object`)}
	}

	confidence := -1.0
	if env.Confidence != nil {
		confidence = *env.Confidence
	}
	return &port.ExtractOutput{
		Fields:     env.Fields,
		Confidence: confidence,
		Model:      model,
		Prompt:     prompt,
	}, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// IsText reports whether a mime type is sent to providers as plain text.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}
