package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"dealscope/internal/domain"
	"dealscope/internal/port"
)

type reportRepo struct {
	db *sqlx.DB
}

// NewReportRepo creates a new SQL-backed ReportRepository.
func NewReportRepo(db *sqlx.DB) port.ReportRepository {
	return &reportRepo{db: db}
}

func (r *reportRepo) Create(ctx context.Context, report *domain.InvestmentReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("reportRepo.Create marshal: %w", err)
	}

	var (
		companyName string
		confidence  float64
	)
	if report.Profile != nil {
		confidence = report.Profile.Confidence
		if report.Profile.Company.Name != nil {
			companyName = *report.Profile.Company.Name
		}
	}
	createdAt := report.Metadata.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := r.db.Rebind(`INSERT INTO analysis_reports
		(id, company_name, overall_score, decision, low_data, confidence,
		 documents_attempted, documents_succeeded, rubric_version, report_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = r.db.ExecContext(ctx, query,
		report.AnalysisID, companyName, report.Overall, report.Decision, report.LowData, confidence,
		report.Metadata.DocumentsAttempted, report.Metadata.DocumentsSucceeded, report.RubricVersion,
		string(body), createdAt)
	if err != nil {
		return fmt.Errorf("reportRepo.Create: %w", err)
	}
	return nil
}

func (r *reportRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvestmentReport, error) {
	var body string
	err := r.db.GetContext(ctx, &body,
		r.db.Rebind("SELECT report_json FROM analysis_reports WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("reportRepo.GetByID: %w", err)
	}

	var report domain.InvestmentReport
	if err := json.Unmarshal([]byte(body), &report); err != nil {
		return nil, fmt.Errorf("reportRepo.GetByID unmarshal: %w", err)
	}
	return &report, nil
}

func (r *reportRepo) List(ctx context.Context, offset, limit int) ([]domain.ReportSummary, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM analysis_reports"); err != nil {
		return nil, 0, fmt.Errorf("reportRepo.List count: %w", err)
	}

	reports := []domain.ReportSummary{}
	err := r.db.SelectContext(ctx, &reports, r.db.Rebind(
		`SELECT id, company_name, overall_score, decision, low_data, confidence,
		        documents_attempted, documents_succeeded, rubric_version, created_at
		 FROM analysis_reports
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("reportRepo.List: %w", err)
	}
	return reports, total, nil
}
