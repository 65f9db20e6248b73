package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dealscope/internal/port"
)

// MockReportArchive is a mock implementation of port.ReportArchive.
type MockReportArchive struct {
	mock.Mock
}

func (m *MockReportArchive) Put(ctx context.Context, key string, body []byte) (*port.ArchivedReport, error) {
	args := m.Called(ctx, key, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ArchivedReport), args.Error(1)
}

func (m *MockReportArchive) SignedURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
