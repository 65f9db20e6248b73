package claude

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
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	defaultModel = "claude-sonnet-4-20250514"
	providerName = "claude"
)

func init() {
	parser.RegisterProvider(providerName, func(cfg *config.ParserProviderConfig) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using the Anthropic Messages API.
type Extractor struct {
	client *client
}

// NewExtractor creates a Claude-based extractor from a provider config.
func NewExtractor(cfg *config.ParserProviderConfig) *Extractor {
	return &Extractor{client: newClient(cfg, apiURL)}
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Extractor {
	return &Extractor{client: newClient(cfg, endpoint)}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildProfilePrompt(input.Schema, input.Strict)

	contentBlocks, err := buildContentBlocks(input, prompt)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	text, err := e.client.send(ctx, contentBlocks, 8192)
	if err != nil {
		return nil, err
	}
	return parser.DecodeEnvelope(providerName, text, e.client.model, prompt)
}

// client is the Messages API transport shared by the extractor and the assistant.
type client struct {
	apiKey   string
	model    string
	endpoint string
	http     *http.Client
}

func newClient(cfg *config.ParserProviderConfig, endpoint string) *client {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *client) send(ctx context.Context, content []map[string]interface{}, maxTokens int) (string, error) {
	reqBody := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": content,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", parser.CallError(providerName, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", parser.CallError(providerName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", parser.StatusError(providerName, resp, respBody)
	}

	return firstText(respBody)
}

func buildContentBlocks(input port.ExtractInput, prompt string) ([]map[string]interface{}, error) {
	var blocks []map[string]interface{}

	switch {
	case input.MimeType == "application/pdf":
		blocks = append(blocks, map[string]interface{}{
			"type": "document",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": "application/pdf",
				"data":       base64.StdEncoding.EncodeToString(input.Data),
			},
		})
	case input.MimeType == "image/jpeg", input.MimeType == "image/png",
		input.MimeType == "image/webp", input.MimeType == "image/gif":
		blocks = append(blocks, map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": input.MimeType,
				"data":       base64.StdEncoding.EncodeToString(input.Data),
			},
		})
	case parser.IsText(input.MimeType):
		blocks = append(blocks, map[string]interface{}{
			"type": "text",
			"text": fmt.Sprintf("Document %q:\n\n%s", input.Filename, string(input.Data)),
		})
	default:
		return nil, fmt.Errorf("%w: %s", parser.ErrUnsupportedContentType, input.MimeType)
	}

	blocks = append(blocks, map[string]interface{}{
		"type": "text",
		"text": prompt,
	})

	return blocks, nil
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func firstText(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &parser.UnavailableError{Provider: providerName, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	if len(resp.Content) == 0 {
		return "", &parser.MalformedResponseError{Provider: providerName, Raw: string(body), Err: fmt.Errorf("empty response from API")}
	}

	if resp.StopReason == "max_tokens" {
		return "", &parser.MalformedResponseError{
			Provider: providerName,
			Raw:      resp.Content[0].Text,
			Err:      fmt.Errorf("output truncated (stop_reason: max_tokens)"),
		}
	}

	return resp.Content[0].Text, nil
}
