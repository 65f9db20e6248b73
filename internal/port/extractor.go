package port

import (
	"context"
	"encoding/json"
)

// ExtractInput carries one (possibly compressed) document to the extraction capability.
type ExtractInput struct {
	Data     []byte
	MimeType string
	Filename string
	Schema   string
	// Strict asks the provider for a stricter answer after a malformed response.
	Strict bool
}

// ExtractOutput is the raw, unvalidated answer of an extraction provider.
type ExtractOutput struct {
	Fields     json.RawMessage
	Confidence float64 // 0-100, negative when the provider did not report one
	Model      string
	Prompt     string
}

// Extractor abstracts the external structured-extraction capability.
type Extractor interface {
	Extract(ctx context.Context, input ExtractInput) (*ExtractOutput, error)
}
