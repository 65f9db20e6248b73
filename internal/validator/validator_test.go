package validator_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealscope/internal/domain"
	"dealscope/internal/parser"
	"dealscope/internal/port"
	"dealscope/internal/validator"
)

func output(fields string, confidence float64) *port.ExtractOutput {
	return &port.ExtractOutput{Fields: json.RawMessage(fields), Confidence: confidence, Model: "test"}
}

const fullPayload = `{
	"company": {"name": "  Acme Robotics ", "industry": "Robotics", "founded_year": 2019, "stage": "seed"},
	"financial": {"annual_revenue": 1200000, "revenue_growth_pct": 80, "gross_margin_pct": 62},
	"team": {"founder_count": 2, "has_technical_founder": true, "key_members": ["Ada", " ", "Grace"]},
	"market": {"tam": 4000000000, "competitors": ["Globex"], "differentiators": ["patented gripper"]},
	"risks": [{"type": "Regulatory", "description": "FDA approval pending", "severity": "HIGH"}]
}`

func TestValidate_FullPayload(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(fullPayload, 82))

	require.NoError(t, err)
	assert.Empty(t, res.MissingSections)
	assert.Equal(t, 82.0, res.Confidence)
	assert.Equal(t, "Acme Robotics", *res.Fields.Company.Name)
	assert.Equal(t, 2019, *res.Fields.Company.FoundedYear)
	assert.Equal(t, []string{"Ada", "Grace"}, res.Fields.Team.KeyMembers)
	require.Len(t, res.Fields.Risks, 1)
	assert.Equal(t, domain.SeverityHigh, res.Fields.Risks[0].Severity)
	assert.Equal(t, "regulatory", res.Fields.Risks[0].Type)
}

func TestValidate_MissingSectionsPenalized(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(`{"company": {"name": "Acme"}, "financial": null}`, 70))

	require.NoError(t, err)
	assert.Equal(t, []string{"financial", "team", "market", "risks"}, res.MissingSections)
	assert.Equal(t, 10.0, res.Confidence)
}

func TestValidate_PenaltyFloorsAtZero(t *testing.T) {
	v := validator.New(nil, 30)

	res, err := v.Validate(output(`{"risks": []}`, 60))

	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestValidate_MissingConfidenceDefaults(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(fullPayload, -1))

	require.NoError(t, err)
	assert.Equal(t, validator.DefaultConfidence, res.Confidence)
	assert.Contains(t, res.Issues, "confidence not reported, defaulted to 50")
}

func TestValidate_UnknownKeysDropped(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(`{
		"company": {"name": "Acme", "mascot": "owl"},
		"financial": {}, "team": {}, "market": {}, "risks": [],
		"sentiment": "bullish"
	}`, 90))

	require.NoError(t, err)
	assert.Contains(t, res.Issues, `unknown section "sentiment" dropped`)
	assert.Contains(t, res.Issues, "company.mascot: unknown field dropped")
	out, _ := json.Marshal(res.Fields)
	assert.NotContains(t, string(out), "owl")
	assert.NotContains(t, string(out), "bullish")
}

func TestValidate_MistypedFieldDroppedNotSection(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(`{"financial": {"annual_revenue": "2.5M", "monthly_burn": 90000}}`, 50))

	require.NoError(t, err)
	assert.Nil(t, res.Fields.Financial.AnnualRevenue)
	require.NotNil(t, res.Fields.Financial.MonthlyBurn)
	assert.Equal(t, 90000.0, *res.Fields.Financial.MonthlyBurn)
	assert.NotContains(t, res.MissingSections, "financial")
}

func TestValidate_RulesNullInvalidValues(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(`{
		"company": {"name": "   ", "founded_year": 1492},
		"financial": {"annual_revenue": -5, "gross_margin_pct": 140, "customers": -3},
		"risks": [
			{"type": "", "description": "Key person dependency", "severity": "critical"},
			{"type": "market", "description": "   ", "severity": "low"}
		]
	}`, 80))

	require.NoError(t, err)
	assert.Nil(t, res.Fields.Company.Name)
	assert.Nil(t, res.Fields.Company.FoundedYear)
	assert.Nil(t, res.Fields.Financial.AnnualRevenue)
	assert.Nil(t, res.Fields.Financial.GrossMarginPct)
	assert.Nil(t, res.Fields.Financial.Customers)
	require.Len(t, res.Fields.Risks, 1)
	assert.Equal(t, "general", res.Fields.Risks[0].Type)
	assert.Equal(t, domain.SeverityMedium, res.Fields.Risks[0].Severity)
}

func TestValidate_NoSectionsIsMalformed(t *testing.T) {
	v := validator.New(nil, validator.DefaultSectionPenalty)

	for _, payload := range []string{`{}`, `{"summary": "great company"}`, `[1,2]`, ``} {
		_, err := v.Validate(output(payload, 50))
		assert.Equal(t, domain.ErrorKindMalformed, parser.Classify(err), payload)
	}
}

func TestValidate_CustomRegistry(t *testing.T) {
	reg := validator.NewRegistry()
	reg.Register(validator.DefaultRegistry().Get("founded_year_range"))
	v := validator.New(reg, validator.DefaultSectionPenalty)

	res, err := v.Validate(output(`{"company": {"name": "  spaced  "}}`, 50))

	require.NoError(t, err)
	assert.Equal(t, "  spaced  ", *res.Fields.Company.Name)
}

func TestRegistry_OrderAndReplace(t *testing.T) {
	reg := validator.DefaultRegistry()
	keys := func() []string {
		var out []string
		for _, r := range reg.All() {
			out = append(out, r.RuleKey())
		}
		return out
	}
	before := keys()

	reg.Register(reg.Get("risk_severity"))

	assert.Equal(t, before, keys())
	assert.Equal(t, "trim_strings", before[0])
	assert.Nil(t, reg.Get("missing"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, domain.OutcomeSuccess, validator.Classify(nil))
	assert.Equal(t, domain.OutcomeTransientExhausted, validator.Classify(&domain.TransientExtractionError{Attempts: 3, Err: errors.New("503")}))
	assert.Equal(t, domain.OutcomeTransientExhausted, validator.Classify(fmt.Errorf("x: %w", &parser.UnavailableError{Provider: "claude", Err: errors.New("timeout")})))
	assert.Equal(t, domain.OutcomePermanentFailure, validator.Classify(&domain.PermanentExtractionError{Reason: "unsupported"}))
	assert.Equal(t, domain.OutcomePermanentFailure, validator.Classify(&parser.MalformedResponseError{Provider: "x", Err: errors.New("bad")}))
}
