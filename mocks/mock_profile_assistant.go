package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dealscope/internal/domain"
)

// MockProfileAssistant is a mock implementation of port.ProfileAssistant.
type MockProfileAssistant struct {
	mock.Mock
}

func (m *MockProfileAssistant) Ask(ctx context.Context, profile *domain.ConsolidatedProfile, question string) (string, error) {
	args := m.Called(ctx, profile, question)
	return args.String(0), args.Error(1)
}
