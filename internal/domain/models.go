package domain

import (
	"time"

	"github.com/google/uuid"
)

// Document is one file of a batch request. It lives only for the duration of that request.
type Document struct {
	ID                uuid.UUID         `json:"id"`
	Index             int               `json:"index"`
	Filename          string            `json:"filename"`
	MimeType          string            `json:"mime_type"`
	SubmittedMimeType string            `json:"submitted_mime_type"`
	RawSize           int64             `json:"raw_size"`
	CompressedSize    int64             `json:"compressed_size"`
	CompressionMethod CompressionMethod `json:"compression_method"`
	Oversized         bool              `json:"oversized"`
	Status            SubmissionStatus  `json:"status"`
	Bytes             []byte            `json:"-"`
}

// CompanyInfo holds company-level facts. Nil pointers mean "not supplied".
type CompanyInfo struct {
	Name               *string `json:"name"`
	Industry           *string `json:"industry"`
	FoundedYear        *int    `json:"founded_year"`
	Headquarters       *string `json:"headquarters"`
	Stage              *string `json:"stage"`
	BusinessModel      *string `json:"business_model"`
	ProductDescription *string `json:"product_description"`
	ProductStage       *string `json:"product_stage"`
	HasProprietaryTech *bool   `json:"has_proprietary_tech"`
}

// FinancialInfo holds financial and traction metrics. Amounts are in the document currency.
type FinancialInfo struct {
	AnnualRevenue      *float64 `json:"annual_revenue"`
	RevenueGrowthPct   *float64 `json:"revenue_growth_pct"`
	GrossMarginPct     *float64 `json:"gross_margin_pct"`
	MonthlyBurn        *float64 `json:"monthly_burn"`
	RunwayMonths       *float64 `json:"runway_months"`
	FundingRaised      *float64 `json:"funding_raised"`
	FundingAsk         *float64 `json:"funding_ask"`
	Valuation          *float64 `json:"valuation"`
	Customers          *int     `json:"customers"`
	MonthlyActiveUsers *int     `json:"monthly_active_users"`
}

// TeamInfo holds founder and team facts.
type TeamInfo struct {
	FounderCount           *int     `json:"founder_count"`
	EmployeeCount          *int     `json:"employee_count"`
	FounderExperienceYears *float64 `json:"founder_experience_years"`
	HasTechnicalFounder    *bool    `json:"has_technical_founder"`
	PriorExits             *bool    `json:"prior_exits"`
	KeyMembers             []string `json:"key_members"`
}

// MarketInfo holds market sizing and competitive landscape.
type MarketInfo struct {
	TAM             *float64 `json:"tam"`
	SAM             *float64 `json:"sam"`
	GrowthRatePct   *float64 `json:"growth_rate_pct"`
	Competitors     []string `json:"competitors"`
	Differentiators []string `json:"differentiators"`
}

// RiskFlag is one risk reported by a document.
type RiskFlag struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
}

// ExtractedFields is the validated, typed output of one extraction grouped by domain.
type ExtractedFields struct {
	Company   CompanyInfo   `json:"company"`
	Financial FinancialInfo `json:"financial"`
	Team      TeamInfo      `json:"team"`
	Market    MarketInfo    `json:"market"`
	Risks     []RiskFlag    `json:"risks"`
}

// ExtractionResult is one document's settled extraction outcome.
type ExtractionResult struct {
	DocumentID          uuid.UUID        `json:"document_id"`
	DocumentIndex       int              `json:"document_index"`
	Filename            string           `json:"filename"`
	Fields              *ExtractedFields `json:"fields,omitempty"`
	Confidence          float64          `json:"confidence"`
	Outcome             Outcome          `json:"outcome"`
	ErrorKind           ErrorKind        `json:"error_kind,omitempty"`
	Error               string           `json:"error,omitempty"`
	Attempts            int              `json:"attempts"`
	Reasked             bool             `json:"reasked"`
	MissingSections     []string         `json:"missing_sections,omitempty"`
	Issues              []string         `json:"issues,omitempty"`
	CharactersExtracted int              `json:"characters_extracted"`
	Model               string           `json:"model,omitempty"`
	OversizedPolicy     OversizedPolicy  `json:"oversized_policy,omitempty"`
	SubmittedSize       int64            `json:"submitted_size"`
}

// Succeeded reports whether the result carries usable fields.
func (r *ExtractionResult) Succeeded() bool {
	return r.Outcome == OutcomeSuccess && r.Fields != nil
}

// SourceRef names a document that supplied a value and its confidence.
type SourceRef struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Confidence float64   `json:"confidence"`
}

// FieldProvenance records where a consolidated field came from.
type FieldProvenance struct {
	Field    string      `json:"field"`
	Sources  []SourceRef `json:"sources"`
	Conflict bool        `json:"conflict"`
}

// ConsolidatedRisk is a deduplicated risk flag with its sources.
type ConsolidatedRisk struct {
	RiskFlag
	Confidence float64     `json:"confidence"`
	Sources    []SourceRef `json:"sources"`
}

// ConsolidatedProfile is the merged company profile of a batch. Immutable once built.
type ConsolidatedProfile struct {
	Company            CompanyInfo                `json:"company"`
	Financial          FinancialInfo              `json:"financial"`
	Team               TeamInfo                   `json:"team"`
	Market             MarketInfo                 `json:"market"`
	Risks              []ConsolidatedRisk         `json:"risks"`
	Provenance         map[string]FieldProvenance `json:"provenance"`
	Confidence         float64                    `json:"confidence"`
	DocumentsUsed      int                        `json:"documents_used"`
	DocumentsAttempted int                        `json:"documents_attempted"`
}

// IsEmpty reports whether no document contributed to the profile.
func (p *ConsolidatedProfile) IsEmpty() bool {
	return p == nil || p.DocumentsUsed == 0
}

// ScoringFactor is one boolean rubric check.
type ScoringFactor struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Points    int    `json:"points"`
	MaxPoints int    `json:"max_points"`
	Achieved  bool   `json:"achieved"`
}

// DimensionScore is one weighted scoring category.
type DimensionScore struct {
	Dimension Dimension       `json:"dimension"`
	RawScore  int             `json:"raw_score"`
	Weight    float64         `json:"weight"`
	Factors   []ScoringFactor `json:"factors"`
}

// DocumentOutcome summarizes one document in the processing metadata.
type DocumentOutcome struct {
	DocumentID        uuid.UUID         `json:"document_id"`
	Filename          string            `json:"filename"`
	MimeType          string            `json:"mime_type"`
	Status            SubmissionStatus  `json:"status"`
	Outcome           Outcome           `json:"outcome"`
	ErrorKind         ErrorKind         `json:"error_kind,omitempty"`
	Error             string            `json:"error,omitempty"`
	RawSize           int64             `json:"raw_size"`
	CompressedSize    int64             `json:"compressed_size"`
	CompressionMethod CompressionMethod `json:"compression_method"`
	Oversized         bool              `json:"oversized"`
	OversizedPolicy   OversizedPolicy   `json:"oversized_policy,omitempty"`
	Attempts          int               `json:"attempts"`
	Confidence        float64           `json:"confidence"`
}

// ProcessingMetadata describes how a report was produced.
type ProcessingMetadata struct {
	AnalysisID          uuid.UUID         `json:"analysis_id"`
	Timestamp           time.Time         `json:"timestamp"`
	ElapsedMs           int64             `json:"elapsed_ms"`
	DocumentsAttempted  int               `json:"documents_attempted"`
	DocumentsSucceeded  int               `json:"documents_succeeded"`
	CharactersExtracted int               `json:"characters_extracted"`
	Summary             string            `json:"summary"`
	Documents           []DocumentOutcome `json:"documents"`
}

// InvestmentReport is the immutable output of one batch analysis.
type InvestmentReport struct {
	AnalysisID    uuid.UUID            `json:"analysis_id"`
	Overall       int                  `json:"overall"`
	Decision      Decision             `json:"decision"`
	BandDecision  Decision             `json:"band_decision"`
	LowData       bool                 `json:"low_data"`
	RubricVersion string               `json:"rubric_version"`
	Dimensions    []DimensionScore     `json:"dimensions"`
	Profile       *ConsolidatedProfile `json:"profile"`
	Metadata      ProcessingMetadata   `json:"metadata"`
	Warnings      []string             `json:"warnings,omitempty"`
}

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	CompanyName        string    `db:"company_name" json:"company_name"`
	OverallScore       int       `db:"overall_score" json:"overall_score"`
	Decision           Decision  `db:"decision" json:"decision"`
	LowData            bool      `db:"low_data" json:"low_data"`
	Confidence         float64   `db:"confidence" json:"confidence"`
	DocumentsAttempted int       `db:"documents_attempted" json:"documents_attempted"`
	DocumentsSucceeded int       `db:"documents_succeeded" json:"documents_succeeded"`
	RubricVersion      string    `db:"rubric_version" json:"rubric_version"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
