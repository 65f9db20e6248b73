package port

import (
	"context"

	"github.com/google/uuid"

	"dealscope/internal/domain"
)

// ReportRepository persists immutable investment reports.
type ReportRepository interface {
	Create(ctx context.Context, report *domain.InvestmentReport) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentReport, error)
	List(ctx context.Context, offset, limit int) ([]domain.ReportSummary, int, error)
}
