package port

import (
	"context"

	"dealscope/internal/domain"
)

// ProfileAssistant answers free-form questions about a consolidated profile. It must treat the
// profile as read-only.
type ProfileAssistant interface {
	Ask(ctx context.Context, profile *domain.ConsolidatedProfile, question string) (string, error)
}
