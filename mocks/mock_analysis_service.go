package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"dealscope/internal/domain"
	"dealscope/internal/service"
)

// MockAnalysisService is a mock implementation of service.AnalysisService.
type MockAnalysisService struct {
	mock.Mock
}

func (m *MockAnalysisService) Analyze(ctx context.Context, input *service.AnalyzeInput) (*domain.InvestmentReport, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvestmentReport), args.Error(1)
}

func (m *MockAnalysisService) GetReport(ctx context.Context, id uuid.UUID) (*domain.InvestmentReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvestmentReport), args.Error(1)
}

func (m *MockAnalysisService) ListReports(ctx context.Context, offset, limit int) ([]domain.ReportSummary, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ReportSummary), args.Int(1), args.Error(2)
}

func (m *MockAnalysisService) AskQuestion(ctx context.Context, id uuid.UUID, question string) (string, error) {
	args := m.Called(ctx, id, question)
	return args.String(0), args.Error(1)
}

func (m *MockAnalysisService) GetArchiveURL(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}
