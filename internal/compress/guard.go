package compress

import (
	"log"
	"strings"

	"dealscope/internal/domain"
)

// Options bounds the reduction ladder of every strategy.
type Options struct {
	MaxSteps          int
	MinJPEGQuality    int
	MinImageDimension int
}

// Result describes what the Guard did to one document.
type Result struct {
	Data           []byte
	Method         domain.CompressionMethod
	MimeType       string
	OriginalSize   int64
	CompressedSize int64
	Ratio          float64
	Exceeded       bool
	Steps          int
}

// candidate is the smallest output a strategy produced.
type candidate struct {
	data     []byte
	method   domain.CompressionMethod
	mimeType string
	steps    int
}

// strategy reduces one document format. It stops as soon as a step fits the limit
// and otherwise returns the smallest step it produced.
type strategy interface {
	reduce(data []byte, limit int64) (*candidate, error)
}

// Guard shrinks documents to satisfy an external payload-size limit.
type Guard struct {
	opts       Options
	strategies map[string]strategy
}

// NewGuard creates a Guard with the image and PDF strategies registered.
func NewGuard(opts Options) *Guard {
	if opts.MaxSteps < 1 {
		opts.MaxSteps = 1
	}
	if opts.MinJPEGQuality < 1 || opts.MinJPEGQuality > 100 {
		opts.MinJPEGQuality = 40
	}
	if opts.MinImageDimension < 1 {
		opts.MinImageDimension = 1
	}
	img := &imageStrategy{opts: opts}
	return &Guard{
		opts: opts,
		strategies: map[string]strategy{
			"image/jpeg":      img,
			"image/png":       img,
			"image/webp":      img,
			"image/gif":       img,
			"application/pdf": &pdfStrategy{opts: opts},
		},
	}
}

// Compress returns data reduced to at most limit bytes when possible. It never fails:
// when the limit cannot be met the smallest result is returned with Exceeded set.
func (g *Guard) Compress(data []byte, mimeType string, limit int64) Result {
	original := int64(len(data))
	res := Result{
		Data:           data,
		Method:         domain.CompressionNone,
		MimeType:       mimeType,
		OriginalSize:   original,
		CompressedSize: original,
		Ratio:          1,
	}
	if original <= limit {
		return res
	}
	res.Exceeded = true

	s, ok := g.strategies[baseMimeType(mimeType)]
	if !ok {
		return res
	}
	c, err := s.reduce(data, limit)
	if err != nil {
		log.Printf("compress.Guard.Compress: %s strategy stopped early: %v", mimeType, err)
	}
	if c == nil || int64(len(c.data)) >= original {
		return res
	}

	size := int64(len(c.data))
	res.Data = c.data
	res.Method = c.method
	res.MimeType = c.mimeType
	res.CompressedSize = size
	res.Ratio = float64(size) / float64(original)
	res.Exceeded = size > limit
	res.Steps = c.steps
	return res
}

func baseMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// keepSmaller returns whichever candidate has fewer bytes, preferring best on ties.
func keepSmaller(best, next *candidate) *candidate {
	if best == nil || len(next.data) < len(best.data) {
		return next
	}
	return best
}
