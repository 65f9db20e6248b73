package claude

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"dealscope/internal/config"
	"dealscope/internal/domain"
)

// Assistant answers follow-up questions about a consolidated profile.
// It implements port.ProfileAssistant.
type Assistant struct {
	client *client
}

// NewAssistant creates a Claude-backed profile assistant.
func NewAssistant(cfg *config.ParserProviderConfig) *Assistant {
	return &Assistant{client: newClient(cfg, apiURL)}
}

// NewAssistantWithEndpoint creates an assistant pointing at a custom API endpoint (for testing).
func NewAssistantWithEndpoint(cfg *config.ParserProviderConfig, endpoint string) *Assistant {
	return &Assistant{client: newClient(cfg, endpoint)}
}

func (a *Assistant) Ask(ctx context.Context, profile *domain.ConsolidatedProfile, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", domain.ErrEmptyQuestion
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return "", fmt.Errorf("marshaling profile: %w", err)
	}

	prompt := `You are assisting an investment analyst. Answer the question using only the company profile below. ` +
		`If the profile does not contain the answer, say so. Cite the source documents listed in "provenance" when relevant.

Company profile (JSON):
` + string(profileJSON) + `

Question: ` + question

	answer, err := a.client.send(ctx, []map[string]interface{}{{"type": "text", "text": prompt}}, 2048)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}
