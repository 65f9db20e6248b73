package parser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"dealscope/internal/port"
)

// providerSlot is one extractor in the fallback chain plus its rate-limit cooldown.
type providerSlot struct {
	name      string
	extractor port.Extractor

	mu        sync.Mutex
	coolUntil time.Time
}

func (p *providerSlot) cooling(now time.Time) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.coolUntil, now.Before(p.coolUntil)
}

// coolDown only ever extends the cooldown.
func (p *providerSlot) coolDown(until time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if until.After(p.coolUntil) {
		p.coolUntil = until
	}
}

// chainPass accumulates the failures of one walk along the chain.
type chainPass struct {
	called      int
	rateLimited int
	resumeAt    time.Time
	lastErr     error
}

func (c *chainPass) noteResume(at time.Time) {
	if c.resumeAt.IsZero() || at.Before(c.resumeAt) {
		c.resumeAt = at
	}
}

func (c *chainPass) err() error {
	if c.called == c.rateLimited {
		wait := time.Until(c.resumeAt)
		if wait < time.Second {
			wait = time.Second
		}
		return NewRateLimitError("all", errors.New("all providers rate limited"), int(math.Ceil(wait.Seconds())))
	}
	return fmt.Errorf("all providers failed: %w", c.lastErr)
}

// FallbackExtractor walks its providers in order and returns the first answer.
// A provider that reports a rate limit is skipped until its Retry-After passes.
// Safe for concurrent use.
type FallbackExtractor struct {
	slots []*providerSlot
}

// NewFallbackExtractor pairs extractors with their names; missing names become provider-N.
func NewFallbackExtractor(extractors []port.Extractor, names []string) *FallbackExtractor {
	slots := make([]*providerSlot, len(extractors))
	for i, e := range extractors {
		name := fmt.Sprintf("provider-%d", i+1)
		if i < len(names) && names[i] != "" {
			name = names[i]
		}
		slots[i] = &providerSlot{name: name, extractor: e}
	}
	return &FallbackExtractor{slots: slots}
}

// Extract implements port.Extractor. Malformed answers and a finished context end the
// walk immediately: the caller re-asks or stops.
func (f *FallbackExtractor) Extract(ctx context.Context, input port.ExtractInput) (*port.ExtractOutput, error) {
	now := time.Now()
	var pass chainPass

	for _, slot := range f.slots {
		if until, cooling := slot.cooling(now); cooling {
			log.Printf("parser.FallbackExtractor.Extract: %s cooling down until %s", slot.name, until.Format(time.RFC3339))
			pass.noteResume(until)
			continue
		}

		pass.called++
		out, err := slot.extractor.Extract(ctx, input)
		if err == nil {
			return out, nil
		}
		log.Printf("parser.FallbackExtractor.Extract: %s failed: %v", slot.name, err)
		pass.lastErr = err

		var malErr *MalformedResponseError
		if errors.As(err, &malErr) || ctx.Err() != nil {
			return nil, err
		}

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			until := now.Add(rlErr.RetryAfter)
			slot.coolDown(until)
			pass.noteResume(until)
			pass.rateLimited++
		}
	}

	return nil, pass.err()
}
