package consolidate_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/internal/consolidate"
	"dealscope/internal/domain"
)

func strPtr(s string) *string     { return &s }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func success(index int, confidence float64, fields domain.ExtractedFields) domain.ExtractionResult {
	return domain.ExtractionResult{
		DocumentID:    uuid.New(),
		DocumentIndex: index,
		Filename:      "doc" + string(rune('a'+index)) + ".pdf",
		Fields:        &fields,
		Confidence:    confidence,
		Outcome:       domain.OutcomeSuccess,
	}
}

func failure(index int, outcome domain.Outcome) domain.ExtractionResult {
	return domain.ExtractionResult{
		DocumentID:    uuid.New(),
		DocumentIndex: index,
		Outcome:       outcome,
		Error:         "boom",
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "key person risk", consolidate.NormalizeKey("  Key   Person\tRISK \n"))
	assert.Equal(t, "", consolidate.NormalizeKey("   "))
	assert.Equal(t, consolidate.NormalizeKey("Globex Corp"), consolidate.NormalizeKey("globex  corp"))
}

func TestConsolidate_ScalarHighestConfidenceWins(t *testing.T) {
	deck := success(0, 60, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme"), Industry: strPtr("Fintech")}})
	financials := success(1, 90, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme Inc")}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{deck, financials})

	assert.Equal(t, "Acme Inc", *p.Company.Name)
	assert.Equal(t, "Fintech", *p.Company.Industry)

	prov := p.Provenance["company.name"]
	require.Len(t, prov.Sources, 1)
	assert.Equal(t, financials.DocumentID, prov.Sources[0].DocumentID)
	assert.True(t, prov.Conflict)

	industry := p.Provenance["company.industry"]
	require.Len(t, industry.Sources, 1)
	assert.Equal(t, deck.DocumentID, industry.Sources[0].DocumentID)
	assert.False(t, industry.Conflict)
}

func TestConsolidate_TieBrokenByEarliestIndex(t *testing.T) {
	later := success(2, 75, domain.ExtractedFields{Financial: domain.FinancialInfo{AnnualRevenue: floatPtr(2_000_000)}})
	earlier := success(1, 75, domain.ExtractedFields{Financial: domain.FinancialInfo{AnnualRevenue: floatPtr(1_500_000)}})

	for i := 0; i < 5; i++ {
		p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{later, earlier})
		assert.Equal(t, 1_500_000.0, *p.Financial.AnnualRevenue)
		assert.Equal(t, earlier.DocumentID, p.Provenance["financial.annual_revenue"].Sources[0].DocumentID)
	}
}

func TestConsolidate_AgreeingSourcesListed(t *testing.T) {
	a := success(0, 80, domain.ExtractedFields{Team: domain.TeamInfo{FounderCount: intPtr(2)}})
	b := success(1, 70, domain.ExtractedFields{Team: domain.TeamInfo{FounderCount: intPtr(2)}})
	c := success(2, 50, domain.ExtractedFields{Company: domain.CompanyInfo{HasProprietaryTech: boolPtr(true)}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b, c})

	prov := p.Provenance["team.founder_count"]
	require.Len(t, prov.Sources, 2)
	assert.Equal(t, a.DocumentID, prov.Sources[0].DocumentID)
	assert.Equal(t, b.DocumentID, prov.Sources[1].DocumentID)
	assert.False(t, prov.Conflict)
	assert.True(t, *p.Company.HasProprietaryTech)
}

func TestConsolidate_EveryFieldHasProvenanceEntry(t *testing.T) {
	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{
		success(0, 50, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}}),
	})

	for _, path := range []string{"company.name", "company.stage", "financial.valuation", "team.key_members", "market.competitors"} {
		_, ok := p.Provenance[path]
		assert.True(t, ok, path)
	}
	assert.Empty(t, p.Provenance["company.stage"].Sources)
	assert.Nil(t, p.Company.Stage)
}

func TestConsolidate_ListUnionDedupFirstSeenOrder(t *testing.T) {
	a := success(0, 50, domain.ExtractedFields{Market: domain.MarketInfo{Competitors: []string{"Globex", "Initech"}}})
	b := success(1, 90, domain.ExtractedFields{Market: domain.MarketInfo{Competitors: []string{"Umbrella", "  GLOBEX "}}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{b, a})

	assert.Equal(t, []string{"  GLOBEX ", "Initech", "Umbrella"}, p.Market.Competitors)
	assert.Len(t, p.Provenance["market.competitors"].Sources, 2)
}

func TestConsolidate_RiskDuplicatesCollapse(t *testing.T) {
	a := success(0, 60, domain.ExtractedFields{Risks: []domain.RiskFlag{
		{Type: "Regulatory", Description: "FDA approval pending", Severity: domain.SeverityMedium},
	}})
	b := success(1, 40, domain.ExtractedFields{Risks: []domain.RiskFlag{
		{Type: "regulatory", Description: "  fda   APPROVAL pending ", Severity: domain.SeverityHigh},
		{Type: "market", Description: "Crowded space", Severity: domain.SeverityLow},
	}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b})

	require.Len(t, p.Risks, 2)
	assert.Equal(t, domain.SeverityHigh, p.Risks[0].Severity)
	assert.Len(t, p.Risks[0].Sources, 2)
	assert.Equal(t, "Crowded space", p.Risks[1].Description)
}

func TestConsolidate_RiskSameSeverityHigherConfidenceWins(t *testing.T) {
	a := success(0, 30, domain.ExtractedFields{Risks: []domain.RiskFlag{{Type: "team", Description: "solo founder", Severity: domain.SeverityMedium}}})
	b := success(1, 85, domain.ExtractedFields{Risks: []domain.RiskFlag{{Type: "Team", Description: "Solo Founder", Severity: domain.SeverityMedium}}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b})

	require.Len(t, p.Risks, 1)
	assert.Equal(t, "Solo Founder", p.Risks[0].Description)
	assert.Equal(t, 85.0, p.Risks[0].Confidence)
}

func TestConsolidate_SameTypeDifferentDescriptionKept(t *testing.T) {
	a := success(0, 50, domain.ExtractedFields{Risks: []domain.RiskFlag{
		{Type: "market", Description: "Crowded space", Severity: domain.SeverityLow},
		{Type: "execution", Description: "Crowded space", Severity: domain.SeverityLow},
	}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a})

	assert.Len(t, p.Risks, 2)
}

func TestConsolidate_FailedResultsIgnored(t *testing.T) {
	ok := success(0, 80, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{ok, failure(1, domain.OutcomePermanentFailure)})

	assert.Equal(t, 1, p.DocumentsUsed)
	assert.Equal(t, 2, p.DocumentsAttempted)
	assert.Equal(t, 60.0, p.Confidence)
}

func TestConsolidate_NoSuccessIsEmpty(t *testing.T) {
	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{
		failure(0, domain.OutcomePermanentFailure),
		failure(1, domain.OutcomeTransientExhausted),
	})

	assert.True(t, p.IsEmpty())
	assert.Equal(t, 0.0, p.Confidence)
	assert.Empty(t, p.Risks)
}

func TestConsolidate_ConfidenceExcludesNonContributing(t *testing.T) {
	contributing := success(0, 80, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}})
	empty := success(1, 20, domain.ExtractedFields{})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{contributing, empty})

	assert.Equal(t, 1, p.DocumentsUsed)
	assert.Equal(t, 80.0, p.Confidence)
}

func TestConsolidate_ConfidenceWeighted(t *testing.T) {
	a := success(0, 90, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}})
	b := success(1, 30, domain.ExtractedFields{Company: domain.CompanyInfo{Industry: strPtr("AI")}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b})

	// (90² + 30²) / (90 + 30) = 75
	assert.Equal(t, 75.0, p.Confidence)
}

func TestConsolidate_PartialBatchLowersConfidence(t *testing.T) {
	fields := domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}}
	a := success(0, 70, fields)
	b := success(1, 70, fields)
	c := success(2, 70, fields)

	full := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b, c})
	partial := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b, failure(2, domain.OutcomeTransientExhausted)})

	assert.Equal(t, 70.0, full.Confidence)
	assert.Less(t, partial.Confidence, full.Confidence)
	assert.Equal(t, 3, partial.DocumentsAttempted)
	assert.Equal(t, 2, partial.DocumentsUsed)
}

func TestConsolidate_OrderIndependent(t *testing.T) {
	a := success(0, 70, domain.ExtractedFields{
		Company: domain.CompanyInfo{Name: strPtr("Acme")},
		Market:  domain.MarketInfo{Differentiators: []string{"speed"}},
	})
	b := success(1, 70, domain.ExtractedFields{
		Company: domain.CompanyInfo{Name: strPtr("ACME Corp")},
		Market:  domain.MarketInfo{Differentiators: []string{"Speed", "price"}},
	})

	first := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a, b})
	second := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{b, a})

	assert.Equal(t, first, second)
}

func TestConsolidate_ProfileDoesNotAliasInputs(t *testing.T) {
	a := success(0, 70, domain.ExtractedFields{Company: domain.CompanyInfo{Name: strPtr("Acme")}})

	p := consolidate.NewEngine().Consolidate([]domain.ExtractionResult{a})
	*a.Fields.Company.Name = "Mutated"

	assert.Equal(t, "Acme", *p.Company.Name)
}
