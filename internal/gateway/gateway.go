package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"dealscope/internal/domain"
	"dealscope/internal/parser"
	"dealscope/internal/port"
	"dealscope/internal/validator"
)

// Options configures the retry and size discipline of a Gateway.
type Options struct {
	AttemptTimeout  time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	OversizedPolicy domain.OversizedPolicy
	LimitBytes      int64
	Schema          string
}

// Gateway submits one document to the extraction capability and settles it into an ExtractionResult.
// It keeps no state between calls and is safe for concurrent use.
type Gateway struct {
	extractor port.Extractor
	validator *validator.Validator
	opts      Options
}

// New creates a Gateway. Zero options fall back to 90s attempts, 500ms backoff and the reject policy.
func New(extractor port.Extractor, v *validator.Validator, opts Options) *Gateway {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 90 * time.Second
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if !opts.OversizedPolicy.IsValid() {
		opts.OversizedPolicy = domain.OversizedReject
	}
	if opts.Schema == "" {
		opts.Schema = parser.ProfileSchema
	}
	if v == nil {
		v = validator.New(nil, validator.DefaultSectionPenalty)
	}
	return &Gateway{extractor: extractor, validator: v, opts: opts}
}

// Budget returns the worst-case wall time of one Submit: every attempt timing out plus the full
// backoff schedule.
func (g *Gateway) Budget() time.Duration {
	attempts := 1 + g.opts.MaxRetries + 1 // transient retries plus one strict re-ask
	budget := time.Duration(attempts) * g.opts.AttemptTimeout
	for n := 0; n < g.opts.MaxRetries; n++ {
		budget += g.backoff(n)
	}
	return budget
}

// Submit extracts and validates one document. Every failure is reported on the result.
func (g *Gateway) Submit(ctx context.Context, doc domain.Document) domain.ExtractionResult {
	res := domain.ExtractionResult{
		DocumentID:    doc.ID,
		DocumentIndex: doc.Index,
		Filename:      doc.Filename,
	}

	data := doc.Bytes
	if doc.Oversized {
		var err error
		data, err = g.applyOversizedPolicy(doc, &res)
		if err != nil {
			log.Printf("gateway.Gateway.Submit: %s rejected: %v", doc.Filename, err)
			return fail(res, domain.OutcomePermanentFailure, domain.ErrorKindOversized, err)
		}
	}

	res.SubmittedSize = int64(len(data))
	input := port.ExtractInput{
		Data:     data,
		MimeType: doc.MimeType,
		Filename: doc.Filename,
		Schema:   g.opts.Schema,
	}

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return interrupted(res, err)
		}
		res.Attempts++

		validated, out, err := g.attempt(ctx, input)
		if err == nil {
			res.Outcome = domain.OutcomeSuccess
			res.Fields = validated.Fields
			res.Confidence = validated.Confidence
			res.MissingSections = validated.MissingSections
			res.Issues = append(res.Issues, validated.Issues...)
			res.CharactersExtracted = len(out.Fields)
			res.Model = out.Model
			return res
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Printf("gateway.Gateway.Submit: %s attempt %d interrupted: %v", doc.Filename, res.Attempts, err)
			return interrupted(res, ctxErr)
		}
		kind := parser.Classify(err)
		log.Printf("gateway.Gateway.Submit: %s attempt %d failed (%s): %v", doc.Filename, res.Attempts, kind, err)

		switch kind {
		case domain.ErrorKindCancelled:
			return fail(res, domain.OutcomePermanentFailure, kind, err)

		case domain.ErrorKindTransient:
			if retries >= g.opts.MaxRetries {
				return fail(res, domain.OutcomeTransientExhausted, kind,
					&domain.TransientExtractionError{Attempts: res.Attempts, Err: err})
			}
			if waitErr := sleep(ctx, g.backoff(retries)); waitErr != nil {
				return interrupted(res, waitErr)
			}
			retries++

		case domain.ErrorKindMalformed:
			if res.Reasked {
				return fail(res, domain.OutcomePermanentFailure, kind,
					&domain.PermanentExtractionError{Reason: "malformed response after strict re-ask", Err: err})
			}
			res.Reasked = true
			input.Strict = true

		default:
			return fail(res, domain.OutcomePermanentFailure, domain.ErrorKindPermanent,
				&domain.PermanentExtractionError{Reason: "extraction rejected", Err: err})
		}
	}
}

func (g *Gateway) attempt(ctx context.Context, input port.ExtractInput) (*validator.Validated, *port.ExtractOutput, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.opts.AttemptTimeout)
	defer cancel()

	out, err := g.extractor.Extract(attemptCtx, input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = &parser.UnavailableError{Provider: "gateway", Err: fmt.Errorf("attempt timed out after %s: %w", g.opts.AttemptTimeout, err)}
		}
		return nil, nil, err
	}
	validated, err := g.validator.Validate(out)
	if err != nil {
		return nil, nil, err
	}
	return validated, out, nil
}

// applyOversizedPolicy records the policy on res and returns the bytes to submit.
func (g *Gateway) applyOversizedPolicy(doc domain.Document, res *domain.ExtractionResult) ([]byte, error) {
	res.OversizedPolicy = g.opts.OversizedPolicy
	oversized := &domain.OversizedDocumentError{
		Filename: doc.Filename,
		Size:     int64(len(doc.Bytes)),
		Limit:    g.opts.LimitBytes,
		Policy:   g.opts.OversizedPolicy,
	}

	switch g.opts.OversizedPolicy {
	case domain.OversizedProceed:
		res.Issues = append(res.Issues, fmt.Sprintf("submitted at %d bytes, above the %d byte limit", len(doc.Bytes), g.opts.LimitBytes))
		return doc.Bytes, nil
	case domain.OversizedTruncate:
		if !parser.IsText(doc.MimeType) || g.opts.LimitBytes <= 0 {
			res.OversizedPolicy = domain.OversizedReject
			oversized.Policy = domain.OversizedReject
			return nil, fmt.Errorf("truncation only applies to text documents: %w", oversized)
		}
		cut := truncateText(doc.Bytes, g.opts.LimitBytes)
		res.Issues = append(res.Issues, fmt.Sprintf("truncated from %d to %d bytes", len(doc.Bytes), len(cut)))
		return cut, nil
	default:
		return nil, oversized
	}
}

func (g *Gateway) backoff(n int) time.Duration {
	return g.opts.BackoffBase << n
}

// truncateText cuts b to at most limit bytes without splitting a UTF-8 sequence.
func truncateText(b []byte, limit int64) []byte {
	if int64(len(b)) <= limit {
		return b
	}
	cut := b[:limit]
	for i := 0; i < utf8.UTFMax-1 && len(cut) > 0; i++ {
		r, size := utf8.DecodeLastRune(cut)
		if r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// interrupted labels a result whose context ended: an expired document budget is an
// exhausted transient failure, a cancelled batch is permanent.
func interrupted(res domain.ExtractionResult, err error) domain.ExtractionResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return fail(res, domain.OutcomeTransientExhausted, domain.ErrorKindTransient,
			&domain.TransientExtractionError{Attempts: res.Attempts, Err: fmt.Errorf("document budget exceeded: %w", err)})
	}
	return fail(res, domain.OutcomePermanentFailure, domain.ErrorKindCancelled, err)
}

func fail(res domain.ExtractionResult, outcome domain.Outcome, kind domain.ErrorKind, err error) domain.ExtractionResult {
	res.Outcome = outcome
	res.ErrorKind = kind
	res.Error = err.Error()
	res.Fields = nil
	res.Confidence = 0
	return res
}
