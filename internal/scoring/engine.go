package scoring

import (
	"fmt"
	"math"

	"dealscope/internal/domain"
)

// DefaultLowDataThreshold is the profile confidence below which the decision is forced to hold.
const DefaultLowDataThreshold = 40.0

// Result is the scoring outcome of one profile.
type Result struct {
	Dimensions    []domain.DimensionScore
	Overall       int
	Decision      domain.Decision
	BandDecision  domain.Decision
	LowData       bool
	RubricVersion string
	Warnings      []string
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Rubric           *Rubric
	Bands            *Bands
	LowDataThreshold *float64
}

// Engine scores consolidated profiles against a rubric. It is safe for concurrent use.
type Engine struct {
	rubric           *Rubric
	bands            Bands
	lowDataThreshold float64
}

// NewEngine creates a scoring Engine.
func NewEngine(opts Options) (*Engine, error) {
	e := &Engine{
		rubric:           opts.Rubric,
		bands:            DefaultBands(),
		lowDataThreshold: DefaultLowDataThreshold,
	}
	if e.rubric == nil {
		r, err := DefaultRubric()
		if err != nil {
			return nil, err
		}
		e.rubric = r
	}
	if opts.Bands != nil {
		e.bands = *opts.Bands
	}
	if err := e.bands.Validate(); err != nil {
		return nil, err
	}
	if opts.LowDataThreshold != nil {
		t := *opts.LowDataThreshold
		if t < 0 || t > 100 || math.IsNaN(t) {
			return nil, &domain.ConfigurationError{Key: "scoring.low_data_threshold", Reason: fmt.Sprintf("must be within [0,100], got %g", t)}
		}
		e.lowDataThreshold = t
	}
	return e, nil
}

// RubricVersion returns the version of the rubric in use.
func (e *Engine) RubricVersion() string {
	return e.rubric.Version
}

// Score evaluates every rubric dimension against the profile and combines them with weights.
// Weights not summing to 100 are normalized with a warning.
func (e *Engine) Score(profile *domain.ConsolidatedProfile, weights map[domain.Dimension]float64) (*Result, error) {
	raw := make(map[domain.Dimension]int, len(domain.AllDimensions()))
	factors := make(map[domain.Dimension][]domain.ScoringFactor, len(domain.AllDimensions()))
	for _, d := range domain.AllDimensions() {
		raw[d], factors[d] = e.scoreDimension(profile, d)
	}

	res, err := e.Evaluate(raw, weights, profile.Confidence)
	if err != nil {
		return nil, err
	}
	for i := range res.Dimensions {
		res.Dimensions[i].Factors = factors[res.Dimensions[i].Dimension]
	}
	return res, nil
}

// Evaluate combines raw dimension scores into the overall score and decision.
// Weights are merged over DefaultWeights, so nil or partial maps are accepted.
// overall = round(Σ raw × weight / 100), clamped to [0,100].
func (e *Engine) Evaluate(raw map[domain.Dimension]int, weights map[domain.Dimension]float64, confidence float64) (*Result, error) {
	resolved, warnings, err := ResolveWeights(DefaultWeights(), weights)
	if err != nil {
		return nil, err
	}

	res := &Result{RubricVersion: e.rubric.Version, Warnings: warnings}
	total := 0.0
	for _, d := range domain.AllDimensions() {
		score := clampScore(raw[d])
		res.Dimensions = append(res.Dimensions, domain.DimensionScore{
			Dimension: d,
			RawScore:  score,
			Weight:    resolved[d],
		})
		total += float64(score) * resolved[d] / 100
	}
	// Snap float error from normalized weights before rounding.
	res.Overall = clampScore(int(math.Round(math.Round(total*1e6) / 1e6)))
	res.BandDecision = e.bands.Decide(res.Overall)
	res.Decision = res.BandDecision

	if confidence < e.lowDataThreshold {
		res.LowData = true
		res.Decision = domain.DecisionHold
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"low data: profile confidence %.1f is below %.0f, decision forced to hold (band: %s)",
			confidence, e.lowDataThreshold, res.BandDecision))
	}
	return res, nil
}

func (e *Engine) scoreDimension(profile *domain.ConsolidatedProfile, d domain.Dimension) (int, []domain.ScoringFactor) {
	rubricFactors := e.rubric.Dimensions[d]
	out := make([]domain.ScoringFactor, 0, len(rubricFactors))
	achieved := 0
	for _, f := range rubricFactors {
		ok := f.check(profile, f.Threshold)
		points := 0
		if ok {
			points = f.Points
			achieved += f.Points
		}
		out = append(out, domain.ScoringFactor{
			Key:       f.Key,
			Name:      f.Name,
			Points:    points,
			MaxPoints: f.Points,
			Achieved:  ok,
		})
	}
	maxPoints := e.rubric.MaxPoints(d)
	return int(math.Round(100 * float64(achieved) / float64(maxPoints))), out
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
