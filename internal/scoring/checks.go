package scoring

import (
	"strings"

	"dealscope/internal/domain"
)

// Check is a boolean rubric test against a profile. Absent data never passes a check,
// except no_high_severity_risks which passes on an empty risk list.
type Check func(p *domain.ConsolidatedProfile, threshold float64) bool

var checks = map[string]Check{
	"founder_count_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return intAtLeast(p.Team.FounderCount, t)
	},
	"technical_founder": func(p *domain.ConsolidatedProfile, _ float64) bool {
		return isTrue(p.Team.HasTechnicalFounder)
	},
	"founder_experience_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Team.FounderExperienceYears, t)
	},
	"prior_exit": func(p *domain.ConsolidatedProfile, _ float64) bool {
		return isTrue(p.Team.PriorExits)
	},
	"employee_count_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return intAtLeast(p.Team.EmployeeCount, t)
	},
	"tam_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Market.TAM, t)
	},
	"market_growth_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Market.GrowthRatePct, t)
	},
	"competitors_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return float64(len(p.Market.Competitors)) >= t
	},
	"differentiators_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return float64(len(p.Market.Differentiators)) >= t
	},
	"product_described": func(p *domain.ConsolidatedProfile, _ float64) bool {
		return p.Company.ProductDescription != nil && strings.TrimSpace(*p.Company.ProductDescription) != ""
	},
	"product_launched": func(p *domain.ConsolidatedProfile, _ float64) bool {
		if p.Company.ProductStage == nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(*p.Company.ProductStage)) {
		case "launched", "growth", "scaling":
			return true
		}
		return false
	},
	"proprietary_tech": func(p *domain.ConsolidatedProfile, _ float64) bool {
		return isTrue(p.Company.HasProprietaryTech)
	},
	"revenue_above": func(p *domain.ConsolidatedProfile, t float64) bool {
		return p.Financial.AnnualRevenue != nil && *p.Financial.AnnualRevenue > t
	},
	"revenue_growth_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Financial.RevenueGrowthPct, t)
	},
	"customers_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return intAtLeast(p.Financial.Customers, t)
	},
	"mau_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return intAtLeast(p.Financial.MonthlyActiveUsers, t)
	},
	"gross_margin_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Financial.GrossMarginPct, t)
	},
	"runway_min": func(p *domain.ConsolidatedProfile, t float64) bool {
		return floatAtLeast(p.Financial.RunwayMonths, t)
	},
	"burn_disclosed": func(p *domain.ConsolidatedProfile, _ float64) bool {
		return p.Financial.MonthlyBurn != nil
	},
	"valuation_multiple_max": func(p *domain.ConsolidatedProfile, t float64) bool {
		rev, val := p.Financial.AnnualRevenue, p.Financial.Valuation
		if rev == nil || val == nil || *rev <= 0 {
			return false
		}
		return *val / *rev <= t
	},
	"no_high_severity_risks": func(p *domain.ConsolidatedProfile, _ float64) bool {
		for _, r := range p.Risks {
			if r.Severity == domain.SeverityHigh {
				return false
			}
		}
		return true
	},
}

func lookupCheck(name string) (Check, bool) {
	c, ok := checks[name]
	return c, ok
}

func intAtLeast(v *int, t float64) bool {
	return v != nil && float64(*v) >= t
}

func floatAtLeast(v *float64, t float64) bool {
	return v != nil && *v >= t
}

func isTrue(v *bool) bool {
	return v != nil && *v
}
