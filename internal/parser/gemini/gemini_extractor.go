package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dealscope/internal/config"
	"dealscope/internal/parser"
	"dealscope/internal/port"
)

const (
	apiURLTemplate = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	defaultModel   = "gemini-2.0-flash"
	providerName   = "gemini"
)

func init() {
	parser.RegisterProvider(providerName, func(cfg *config.ParserProviderConfig) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using the Gemini generateContent API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates a Gemini-based extractor from a provider config.
func NewExtractor(cfg *config.ParserProviderConfig) *Extractor {
	model := modelOrDefault(cfg)
	return newExtractor(cfg, fmt.Sprintf(apiURLTemplate, model))
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Extractor {
	return newExtractor(cfg, endpoint)
}

func modelOrDefault(cfg *config.ParserProviderConfig) string {
	if cfg.DefaultModel == "" {
		return defaultModel
	}
	return cfg.DefaultModel
}

func newExtractor(cfg *config.ParserProviderConfig, endpoint string) *Extractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    modelOrDefault(cfg),
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildProfilePrompt(input.Schema, input.Strict)

	docPart, err := documentPart(input)
	if err != nil {
		return nil, err
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					docPart,
					{
						"text": prompt,
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"maxOutputTokens":  8192,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, parser.CallError(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, parser.CallError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parser.StatusError(providerName, resp, respBody)
	}

	return parseResponse(respBody, e.model, prompt)
}

func documentPart(input port.ExtractInput) (map[string]interface{}, error) {
	switch input.MimeType {
	case "application/pdf", "image/jpeg", "image/png", "image/webp":
		return map[string]interface{}{
			"inline_data": map[string]interface{}{
				"mime_type": input.MimeType,
				"data":      base64.StdEncoding.EncodeToString(input.Data),
			},
		}, nil
	}
	if parser.IsText(input.MimeType) {
		return map[string]interface{}{
			"text": fmt.Sprintf("Document %q:\n\n%s", input.Filename, string(input.Data)),
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", parser.ErrUnsupportedContentType, input.MimeType)
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte, model, prompt string) (*port.ExtractOutput, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &parser.UnavailableError{Provider: providerName, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &parser.MalformedResponseError{Provider: providerName, Raw: string(body), Err: fmt.Errorf("empty response from API")}
	}

	if resp.Candidates[0].FinishReason == "MAX_TOKENS" {
		return nil, &parser.MalformedResponseError{
			Provider: providerName,
			Raw:      resp.Candidates[0].Content.Parts[0].Text,
			Err:      fmt.Errorf("output truncated (finishReason: MAX_TOKENS)"),
		}
	}

	return parser.DecodeEnvelope(providerName, resp.Candidates[0].Content.Parts[0].Text, model, prompt)
}
