package validator

import (
	"fmt"
	"slices"
	"strings"

	"dealscope/internal/domain"
)

// Rule normalizes one aspect of an extraction in place. Invalid values are set to nil
// and reported as issues.
type Rule interface {
	RuleKey() string
	RuleName() string
	Apply(fields *domain.ExtractedFields) []string
}

// builtinRule wraps a rule function and its metadata for the registry.
type builtinRule struct {
	key  string
	name string
	fn   func(*domain.ExtractedFields) []string
}

func (b *builtinRule) RuleKey() string  { return b.key }
func (b *builtinRule) RuleName() string { return b.name }
func (b *builtinRule) Apply(f *domain.ExtractedFields) []string {
	return b.fn(f)
}

// BuiltinRules returns the built-in normalization rules in application order.
func BuiltinRules() []Rule {
	return []Rule{
		&builtinRule{key: "trim_strings", name: "Trim Text Fields", fn: trimStrings},
		&builtinRule{key: "list_hygiene", name: "Clean List Fields", fn: listHygiene},
		&builtinRule{key: "founded_year_range", name: "Founded Year Range", fn: foundedYearRange},
		&builtinRule{key: "non_negative_amounts", name: "Non-negative Amounts", fn: nonNegativeAmounts},
		&builtinRule{key: "percentage_range", name: "Percentage Range", fn: percentageRange},
		&builtinRule{key: "risk_severity", name: "Risk Severity", fn: riskSeverity},
	}
}

func stringFields(f *domain.ExtractedFields) map[string]**string {
	return map[string]**string{
		"company.name":                &f.Company.Name,
		"company.industry":            &f.Company.Industry,
		"company.headquarters":        &f.Company.Headquarters,
		"company.stage":               &f.Company.Stage,
		"company.business_model":      &f.Company.BusinessModel,
		"company.product_description": &f.Company.ProductDescription,
		"company.product_stage":       &f.Company.ProductStage,
	}
}

func floatAmountFields(f *domain.ExtractedFields) map[string]**float64 {
	return map[string]**float64{
		"financial.annual_revenue":      &f.Financial.AnnualRevenue,
		"financial.monthly_burn":        &f.Financial.MonthlyBurn,
		"financial.runway_months":       &f.Financial.RunwayMonths,
		"financial.funding_raised":      &f.Financial.FundingRaised,
		"financial.funding_ask":         &f.Financial.FundingAsk,
		"financial.valuation":           &f.Financial.Valuation,
		"team.founder_experience_years": &f.Team.FounderExperienceYears,
		"market.tam":                    &f.Market.TAM,
		"market.sam":                    &f.Market.SAM,
	}
}

func intAmountFields(f *domain.ExtractedFields) map[string]**int {
	return map[string]**int{
		"financial.customers":            &f.Financial.Customers,
		"financial.monthly_active_users": &f.Financial.MonthlyActiveUsers,
		"team.founder_count":             &f.Team.FounderCount,
		"team.employee_count":            &f.Team.EmployeeCount,
	}
}

func listFields(f *domain.ExtractedFields) map[string]*[]string {
	return map[string]*[]string{
		"team.key_members":       &f.Team.KeyMembers,
		"market.competitors":     &f.Market.Competitors,
		"market.differentiators": &f.Market.Differentiators,
	}
}

func trimStrings(f *domain.ExtractedFields) []string {
	var issues []string
	fields := stringFields(f)
	for _, path := range sortedKeys(fields) {
		field := fields[path]
		if *field == nil {
			continue
		}
		v := strings.TrimSpace(**field)
		if v == "" {
			*field = nil
			issues = append(issues, fmt.Sprintf("%s: empty value dropped", path))
			continue
		}
		*field = &v
	}
	return issues
}

func listHygiene(f *domain.ExtractedFields) []string {
	var issues []string
	fields := listFields(f)
	for _, path := range sortedKeys(fields) {
		list := fields[path]
		if *list == nil {
			continue
		}
		cleaned := make([]string, 0, len(*list))
		dropped := 0
		for _, item := range *list {
			item = strings.TrimSpace(item)
			if item == "" {
				dropped++
				continue
			}
			cleaned = append(cleaned, item)
		}
		if dropped > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d blank entr(ies) dropped", path, dropped))
		}
		*list = cleaned
	}
	return issues
}

func foundedYearRange(f *domain.ExtractedFields) []string {
	y := f.Company.FoundedYear
	if y == nil || (*y >= 1800 && *y <= 2100) {
		return nil
	}
	f.Company.FoundedYear = nil
	return []string{fmt.Sprintf("company.founded_year: %d outside 1800-2100, dropped", *y)}
}

func nonNegativeAmounts(f *domain.ExtractedFields) []string {
	var issues []string
	floats := floatAmountFields(f)
	for _, path := range sortedKeys(floats) {
		field := floats[path]
		if *field != nil && **field < 0 {
			issues = append(issues, fmt.Sprintf("%s: negative value %g dropped", path, **field))
			*field = nil
		}
	}
	ints := intAmountFields(f)
	for _, path := range sortedKeys(ints) {
		field := ints[path]
		if *field != nil && **field < 0 {
			issues = append(issues, fmt.Sprintf("%s: negative value %d dropped", path, **field))
			*field = nil
		}
	}
	return issues
}

func percentageRange(f *domain.ExtractedFields) []string {
	checks := []struct {
		path     string
		field    **float64
		min, max float64
	}{
		{"financial.revenue_growth_pct", &f.Financial.RevenueGrowthPct, -100, 10000},
		{"financial.gross_margin_pct", &f.Financial.GrossMarginPct, -100, 100},
		{"market.growth_rate_pct", &f.Market.GrowthRatePct, -100, 10000},
	}
	var issues []string
	for _, c := range checks {
		if *c.field == nil {
			continue
		}
		if v := **c.field; v < c.min || v > c.max {
			issues = append(issues, fmt.Sprintf("%s: %g outside %g..%g, dropped", c.path, v, c.min, c.max))
			*c.field = nil
		}
	}
	return issues
}

func riskSeverity(f *domain.ExtractedFields) []string {
	var issues []string
	kept := make([]domain.RiskFlag, 0, len(f.Risks))
	for i, r := range f.Risks {
		r.Description = strings.TrimSpace(r.Description)
		if r.Description == "" {
			issues = append(issues, fmt.Sprintf("risks[%d]: empty description, dropped", i))
			continue
		}
		r.Type = strings.ToLower(strings.TrimSpace(r.Type))
		if r.Type == "" {
			r.Type = "general"
		}
		sev := domain.Severity(strings.ToLower(strings.TrimSpace(string(r.Severity))))
		switch sev {
		case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh:
		default:
			issues = append(issues, fmt.Sprintf("risks[%d]: unknown severity %q, using medium", i, r.Severity))
			sev = domain.SeverityMedium
		}
		r.Severity = sev
		kept = append(kept, r)
	}
	if f.Risks != nil {
		f.Risks = kept
	}
	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
