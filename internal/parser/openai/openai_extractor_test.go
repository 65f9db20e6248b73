package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/internal/config"
	"dealscope/internal/domain"
	"dealscope/internal/parser"
	"dealscope/internal/parser/openai"
	"dealscope/internal/port"
)

func newTestExtractor(url string) *openai.Extractor {
	return openai.NewExtractorWithEndpoint(&config.ParserProviderConfig{
		Provider: "openai", APIKey: "sk-test", TimeoutSecs: 30,
	}, url)
}

func chatResponse(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": content}, "finish_reason": finish},
		},
	}
}

func TestExtractor_PDF_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o", reqBody["model"])
		content := reqBody["messages"].([]interface{})[0].(map[string]interface{})["content"].([]interface{})
		file := content[0].(map[string]interface{})["file"].(map[string]interface{})
		assert.Equal(t, "financials.pdf", file["filename"])
		assert.True(t, strings.HasPrefix(file["file_data"].(string), "data:application/pdf;base64,"))

		_ = json.NewEncoder(w).Encode(chatResponse(`{"fields":{"financial":{"annual_revenue":1200000}},"confidence":91}`, "stop"))
	}))
	defer server.Close()

	out, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{
		Data: []byte("%PDF-1.7"), MimeType: "application/pdf", Filename: "financials.pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, 91.0, out.Confidence)
	assert.Equal(t, "gpt-4o", out.Model)
}

func TestExtractor_LengthFinish_IsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(`{"fields":`, "length"))
	}))
	defer server.Close()

	_, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Data: []byte("x"), MimeType: "image/webp"})

	assert.Equal(t, domain.ErrorKindMalformed, parser.Classify(err))
}

func TestExtractor_BadRequest_IsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid image"}}`))
	}))
	defer server.Close()

	_, err := newTestExtractor(server.URL).Extract(context.Background(), port.ExtractInput{Data: []byte("x"), MimeType: "image/jpeg"})

	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindPermanent, parser.Classify(err))
	assert.Contains(t, err.Error(), "status 400")
}
