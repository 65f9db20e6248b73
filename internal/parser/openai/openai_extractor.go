package openai

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
	apiURL       = "https://api.openai.com/v1/chat/completions"
	defaultModel = "gpt-4o"
	providerName = "openai"
)

func init() {
	parser.RegisterProvider(providerName, func(cfg *config.ParserProviderConfig) (port.Extractor, error) {
		return NewExtractor(cfg), nil
	})
}

// Extractor implements port.Extractor using the OpenAI Chat Completions API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewExtractor creates an OpenAI-based extractor from a provider config.
func NewExtractor(cfg *config.ParserProviderConfig) *Extractor {
	return newExtractor(cfg, apiURL)
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Extractor {
	return newExtractor(cfg, endpoint)
}

func newExtractor(cfg *config.ParserProviderConfig, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	prompt := parser.BuildProfilePrompt(input.Schema, input.Strict)

	contentBlocks, err := buildContentBlocks(input, prompt)
	if err != nil {
		return nil, fmt.Errorf("building content blocks: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":                 e.model,
		"max_completion_tokens": 8192,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": contentBlocks,
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_object",
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
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

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

func buildContentBlocks(input port.ExtractInput, prompt string) ([]map[string]interface{}, error) {
	var blocks []map[string]interface{}
	dataURI := func() string {
		return fmt.Sprintf("data:%s;base64,%s", input.MimeType, base64.StdEncoding.EncodeToString(input.Data))
	}

	switch {
	case input.MimeType == "application/pdf":
		filename := input.Filename
		if filename == "" {
			filename = "document.pdf"
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "file",
			"file": map[string]interface{}{
				"filename":  filename,
				"file_data": dataURI(),
			},
		})
	case input.MimeType == "image/jpeg", input.MimeType == "image/png",
		input.MimeType == "image/webp", input.MimeType == "image/gif":
		blocks = append(blocks, map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": dataURI(),
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

// chatResponse models the OpenAI Chat Completions API response.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte, model, prompt string) (*port.ExtractOutput, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &parser.UnavailableError{Provider: providerName, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	if len(resp.Choices) == 0 {
		return nil, &parser.MalformedResponseError{Provider: providerName, Raw: string(body), Err: fmt.Errorf("empty response from API: no choices")}
	}

	if resp.Choices[0].FinishReason == "length" {
		return nil, &parser.MalformedResponseError{
			Provider: providerName,
			Raw:      resp.Choices[0].Message.Content,
			Err:      fmt.Errorf("output truncated (finish_reason: length)"),
		}
	}

	return parser.DecodeEnvelope(providerName, resp.Choices[0].Message.Content, model, prompt)
}
