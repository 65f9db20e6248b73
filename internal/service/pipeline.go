package service

import (
	"fmt"

	"dealscope/internal/compress"
	"dealscope/internal/config"
	"dealscope/internal/consolidate"
	"dealscope/internal/gateway"
	"dealscope/internal/parser"
	"dealscope/internal/scoring"
	"dealscope/internal/validator"
)

// Pipeline bundles the stages of the analysis pipeline built from configuration.
type Pipeline struct {
	Guard        *compress.Guard
	Gateway      *gateway.Gateway
	Consolidator *consolidate.Engine
	Scorer       *scoring.Engine
	Config       AnalysisConfig
}

// NewPipeline builds every pipeline stage from cfg. Extraction providers must already be
// registered with the parser package.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	extractor, err := parser.NewFromConfig(&cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}

	rubric, err := scoring.LoadRubric(cfg.Scoring.RubricPath)
	if err != nil {
		return nil, err
	}
	bands := scoring.Bands{
		StrongInvestMin: cfg.Scoring.StrongInvestMin,
		InvestMin:       cfg.Scoring.InvestMin,
		HoldMin:         cfg.Scoring.HoldMin,
		PassMin:         cfg.Scoring.PassMin,
	}
	threshold := cfg.Scoring.LowDataThreshold
	scorer, err := scoring.NewEngine(scoring.Options{Rubric: rubric, Bands: &bands, LowDataThreshold: &threshold})
	if err != nil {
		return nil, err
	}

	gw := gateway.New(extractor, validator.New(nil, cfg.Pipeline.SectionPenalty), gateway.Options{
		AttemptTimeout:  cfg.Pipeline.AttemptTimeout,
		MaxRetries:      cfg.Pipeline.MaxRetries,
		BackoffBase:     cfg.Pipeline.BackoffBase,
		OversizedPolicy: cfg.Pipeline.OversizedPolicy,
		LimitBytes:      cfg.Compression.LimitBytes,
	})

	return &Pipeline{
		Guard: compress.NewGuard(compress.Options{
			MaxSteps:          cfg.Compression.MaxSteps,
			MinJPEGQuality:    cfg.Compression.MinJPEGQuality,
			MinImageDimension: cfg.Compression.MinImageDimension,
		}),
		Gateway:      gw,
		Consolidator: consolidate.NewEngine(),
		Scorer:       scorer,
		Config: AnalysisConfig{
			Concurrency:      cfg.Pipeline.Concurrency,
			MaxDocuments:     cfg.Pipeline.MaxDocuments,
			MaxDocumentBytes: cfg.Pipeline.MaxDocumentBytes,
			LimitBytes:       cfg.Compression.LimitBytes,
			DefaultWeights:   cfg.Scoring.Weights,
			ArchiveEnabled:   cfg.S3.ArchiveEnabled,
		},
	}, nil
}
