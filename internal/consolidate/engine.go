package consolidate

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"dealscope/internal/domain"
)

// Engine merges per-document extraction results into one provenance-tracked profile.
// It holds no state; Consolidate is pure.
type Engine struct{}

// NewEngine creates a consolidation Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// merge carries the bookkeeping of one Consolidate call.
type merge struct {
	ranked      []*domain.ExtractionResult // confidence desc, document index asc
	byIndex     []*domain.ExtractionResult // document index asc
	provenance  map[string]domain.FieldProvenance
	contributed map[uuid.UUID]bool
}

// Consolidate merges results. Failed results are ignored. With no successful result the
// returned profile is empty (DocumentsUsed == 0).
func (e *Engine) Consolidate(results []domain.ExtractionResult) *domain.ConsolidatedProfile {
	m := &merge{
		provenance:  make(map[string]domain.FieldProvenance),
		contributed: make(map[uuid.UUID]bool),
	}
	succeeded := 0
	for i := range results {
		if results[i].Succeeded() {
			succeeded++
			m.byIndex = append(m.byIndex, &results[i])
		}
	}
	sort.SliceStable(m.byIndex, func(i, j int) bool {
		return m.byIndex[i].DocumentIndex < m.byIndex[j].DocumentIndex
	})
	m.ranked = append([]*domain.ExtractionResult(nil), m.byIndex...)
	sort.SliceStable(m.ranked, func(i, j int) bool {
		return m.ranked[i].Confidence > m.ranked[j].Confidence
	})

	p := &domain.ConsolidatedProfile{DocumentsAttempted: len(results)}
	m.company(p)
	m.financial(p)
	m.team(p)
	m.market(p)
	p.Risks = m.risks()
	p.Provenance = m.provenance

	p.DocumentsUsed = len(m.contributed)
	p.Confidence = m.confidence(succeeded, len(results))
	return p
}

func (m *merge) company(p *domain.ConsolidatedProfile) {
	c := &p.Company
	c.Name = pickString(m, "company.name", func(f *domain.ExtractedFields) *string { return f.Company.Name })
	c.Industry = pickString(m, "company.industry", func(f *domain.ExtractedFields) *string { return f.Company.Industry })
	c.FoundedYear = pick(m, "company.founded_year", func(f *domain.ExtractedFields) *int { return f.Company.FoundedYear })
	c.Headquarters = pickString(m, "company.headquarters", func(f *domain.ExtractedFields) *string { return f.Company.Headquarters })
	c.Stage = pickString(m, "company.stage", func(f *domain.ExtractedFields) *string { return f.Company.Stage })
	c.BusinessModel = pickString(m, "company.business_model", func(f *domain.ExtractedFields) *string { return f.Company.BusinessModel })
	c.ProductDescription = pickString(m, "company.product_description", func(f *domain.ExtractedFields) *string { return f.Company.ProductDescription })
	c.ProductStage = pickString(m, "company.product_stage", func(f *domain.ExtractedFields) *string { return f.Company.ProductStage })
	c.HasProprietaryTech = pick(m, "company.has_proprietary_tech", func(f *domain.ExtractedFields) *bool { return f.Company.HasProprietaryTech })
}

func (m *merge) financial(p *domain.ConsolidatedProfile) {
	fi := &p.Financial
	fi.AnnualRevenue = pick(m, "financial.annual_revenue", func(f *domain.ExtractedFields) *float64 { return f.Financial.AnnualRevenue })
	fi.RevenueGrowthPct = pick(m, "financial.revenue_growth_pct", func(f *domain.ExtractedFields) *float64 { return f.Financial.RevenueGrowthPct })
	fi.GrossMarginPct = pick(m, "financial.gross_margin_pct", func(f *domain.ExtractedFields) *float64 { return f.Financial.GrossMarginPct })
	fi.MonthlyBurn = pick(m, "financial.monthly_burn", func(f *domain.ExtractedFields) *float64 { return f.Financial.MonthlyBurn })
	fi.RunwayMonths = pick(m, "financial.runway_months", func(f *domain.ExtractedFields) *float64 { return f.Financial.RunwayMonths })
	fi.FundingRaised = pick(m, "financial.funding_raised", func(f *domain.ExtractedFields) *float64 { return f.Financial.FundingRaised })
	fi.FundingAsk = pick(m, "financial.funding_ask", func(f *domain.ExtractedFields) *float64 { return f.Financial.FundingAsk })
	fi.Valuation = pick(m, "financial.valuation", func(f *domain.ExtractedFields) *float64 { return f.Financial.Valuation })
	fi.Customers = pick(m, "financial.customers", func(f *domain.ExtractedFields) *int { return f.Financial.Customers })
	fi.MonthlyActiveUsers = pick(m, "financial.monthly_active_users", func(f *domain.ExtractedFields) *int { return f.Financial.MonthlyActiveUsers })
}

func (m *merge) team(p *domain.ConsolidatedProfile) {
	t := &p.Team
	t.FounderCount = pick(m, "team.founder_count", func(f *domain.ExtractedFields) *int { return f.Team.FounderCount })
	t.EmployeeCount = pick(m, "team.employee_count", func(f *domain.ExtractedFields) *int { return f.Team.EmployeeCount })
	t.FounderExperienceYears = pick(m, "team.founder_experience_years", func(f *domain.ExtractedFields) *float64 { return f.Team.FounderExperienceYears })
	t.HasTechnicalFounder = pick(m, "team.has_technical_founder", func(f *domain.ExtractedFields) *bool { return f.Team.HasTechnicalFounder })
	t.PriorExits = pick(m, "team.prior_exits", func(f *domain.ExtractedFields) *bool { return f.Team.PriorExits })
	t.KeyMembers = m.union("team.key_members", func(f *domain.ExtractedFields) []string { return f.Team.KeyMembers })
}

func (m *merge) market(p *domain.ConsolidatedProfile) {
	mk := &p.Market
	mk.TAM = pick(m, "market.tam", func(f *domain.ExtractedFields) *float64 { return f.Market.TAM })
	mk.SAM = pick(m, "market.sam", func(f *domain.ExtractedFields) *float64 { return f.Market.SAM })
	mk.GrowthRatePct = pick(m, "market.growth_rate_pct", func(f *domain.ExtractedFields) *float64 { return f.Market.GrowthRatePct })
	mk.Competitors = m.union("market.competitors", func(f *domain.ExtractedFields) []string { return f.Market.Competitors })
	mk.Differentiators = m.union("market.differentiators", func(f *domain.ExtractedFields) []string { return f.Market.Differentiators })
}

// confidence is the confidence-weighted mean over contributing documents, scaled by the share
// of attempted documents that succeeded, rounded to one decimal.
func (m *merge) confidence(succeeded, attempted int) float64 {
	if attempted == 0 || len(m.contributed) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, r := range m.byIndex {
		if !m.contributed[r.DocumentID] {
			continue
		}
		c := clamp(r.Confidence)
		sum += c
		sumSq += c * c
	}
	if sum == 0 {
		return 0
	}
	coverage := 0.5 + 0.5*float64(succeeded)/float64(attempted)
	return math.Round(sumSq/sum*coverage*10) / 10
}

func clamp(c float64) float64 {
	switch {
	case c < 0 || math.IsNaN(c):
		return 0
	case c > 100:
		return 100
	}
	return c
}

func sourceRef(r *domain.ExtractionResult) domain.SourceRef {
	return domain.SourceRef{DocumentID: r.DocumentID, Filename: r.Filename, Confidence: r.Confidence}
}
