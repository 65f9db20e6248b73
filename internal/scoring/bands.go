package scoring

import (
	"fmt"

	"dealscope/internal/domain"
)

// Bands holds the minimum overall score of each decision; below PassMin is strong-pass.
type Bands struct {
	StrongInvestMin int
	InvestMin       int
	HoldMin         int
	PassMin         int
}

// DefaultBands returns the standard decision bands.
func DefaultBands() Bands {
	return Bands{StrongInvestMin: 80, InvestMin: 65, HoldMin: 50, PassMin: 35}
}

// Validate checks that the bands are contiguous and monotonic within [0,100].
func (b Bands) Validate() error {
	if !(b.StrongInvestMin <= 100 && b.StrongInvestMin > b.InvestMin && b.InvestMin > b.HoldMin &&
		b.HoldMin > b.PassMin && b.PassMin > 0) {
		return &domain.ConfigurationError{
			Key:    "scoring.bands",
			Reason: fmt.Sprintf("band minima must be strictly decreasing within (0,100]: %d/%d/%d/%d", b.StrongInvestMin, b.InvestMin, b.HoldMin, b.PassMin),
		}
	}
	return nil
}

// Decide maps an overall score to its band.
func (b Bands) Decide(overall int) domain.Decision {
	switch {
	case overall >= b.StrongInvestMin:
		return domain.DecisionStrongInvest
	case overall >= b.InvestMin:
		return domain.DecisionInvest
	case overall >= b.HoldMin:
		return domain.DecisionHold
	case overall >= b.PassMin:
		return domain.DecisionPass
	default:
		return domain.DecisionStrongPass
	}
}
