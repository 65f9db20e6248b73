package scoring

import (
	"fmt"
	"math"

	"dealscope/internal/domain"
)

// DefaultWeights returns the default dimension weights in percent.
func DefaultWeights() map[domain.Dimension]float64 {
	return map[domain.Dimension]float64{
		domain.DimensionTeam:       25,
		domain.DimensionMarket:     25,
		domain.DimensionProduct:    20,
		domain.DimensionTraction:   20,
		domain.DimensionFinancials: 10,
	}
}

// ResolveWeights merges overrides into defaults and normalizes the result to sum to 100.
// Normalization is reported as a warning; negative, non-finite, unknown or all-zero weights
// are a ConfigurationError.
func ResolveWeights(defaults, overrides map[domain.Dimension]float64) (map[domain.Dimension]float64, []string, error) {
	merged := make(map[domain.Dimension]float64, len(domain.AllDimensions()))
	for _, d := range domain.AllDimensions() {
		merged[d] = 0
	}
	for _, src := range []map[domain.Dimension]float64{defaults, overrides} {
		for d, w := range src {
			if !d.IsValid() {
				return nil, nil, &domain.ConfigurationError{Key: "weights." + string(d), Reason: "unknown dimension"}
			}
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, nil, &domain.ConfigurationError{Key: "weights." + string(d), Reason: "must be a finite number"}
			}
			if w < 0 {
				return nil, nil, &domain.ConfigurationError{Key: "weights." + string(d), Reason: fmt.Sprintf("must not be negative, got %g", w)}
			}
			merged[d] = w
		}
	}

	sum := 0.0
	for _, w := range merged {
		sum += w
	}
	if sum == 0 {
		return nil, nil, &domain.ConfigurationError{Key: "weights", Reason: "at least one weight must be positive"}
	}
	if math.Abs(sum-100) < 1e-9 {
		return merged, nil, nil
	}

	for d, w := range merged {
		merged[d] = w * 100 / sum
	}
	warning := fmt.Sprintf("configuration warning: dimension weights summed to %g, normalized to 100", sum)
	return merged, []string{warning}, nil
}
