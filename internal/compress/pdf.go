package compress

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"dealscope/internal/domain"
)

type pdfStrategy struct {
	opts Options
}

func pdfConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// reduce optimizes the document once, then keeps the leading half of the pages per step.
// Method, size and step count are stable for a given input; the bytes are not, since
// pdfcpu writes a fresh trailer ID on every run.
func (s *pdfStrategy) reduce(data []byte, limit int64) (*candidate, error) {
	var best *candidate
	base := data
	steps := 1

	var optimized bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &optimized, pdfConfig()); err != nil {
		return nil, fmt.Errorf("optimizing pdf: %w", err)
	}
	if optimized.Len() < len(data) {
		base = optimized.Bytes()
		best = &candidate{data: base, method: domain.CompressionPDFOptimize, mimeType: "application/pdf", steps: steps}
		if int64(len(base)) <= limit {
			return best, nil
		}
	}

	pages, err := api.PageCount(bytes.NewReader(base), pdfConfig())
	if err != nil {
		return best, fmt.Errorf("counting pdf pages: %w", err)
	}
	keep := pages
	for steps < s.opts.MaxSteps && keep > 1 {
		keep = (keep + 1) / 2
		steps++
		var trimmed bytes.Buffer
		sel := []string{fmt.Sprintf("1-%d", keep)}
		if err := api.Trim(bytes.NewReader(base), &trimmed, sel, pdfConfig()); err != nil {
			return best, fmt.Errorf("trimming pdf to %d pages: %w", keep, err)
		}
		out := trimmed.Bytes()
		best = keepSmaller(best, &candidate{data: out, method: domain.CompressionPDFPageTrim, mimeType: "application/pdf", steps: steps})
		if int64(len(out)) <= limit {
			break
		}
	}
	return best, nil
}
