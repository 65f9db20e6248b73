package compress

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder

	"dealscope/internal/domain"
)

var qualityLadder = []int{85, 70, 55, 40}

// scaleStep is the per-step downscale factor once the quality floor is reached.
const scaleStep = 0.75

type imageStrategy struct {
	opts Options
}

func (s *imageStrategy) reduce(data []byte, limit int64) (*candidate, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	flat := flatten(src)

	var best *candidate
	steps := 0
	for _, q := range s.qualities() {
		if steps >= s.opts.MaxSteps {
			return best, nil
		}
		steps++
		out, err := encodeJPEG(flat, q)
		if err != nil {
			return best, err
		}
		best = keepSmaller(best, &candidate{data: out, method: domain.CompressionImageQuality, mimeType: "image/jpeg", steps: steps})
		if int64(len(out)) <= limit {
			return best, nil
		}
	}

	b := flat.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	for steps < s.opts.MaxSteps {
		w, h = w*scaleStep, h*scaleStep
		if int(w) < s.opts.MinImageDimension || int(h) < s.opts.MinImageDimension {
			break
		}
		steps++
		dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), flat, b, draw.Src, nil)
		out, err := encodeJPEG(dst, s.opts.MinJPEGQuality)
		if err != nil {
			return best, err
		}
		best = keepSmaller(best, &candidate{data: out, method: domain.CompressionImageResize, mimeType: "image/jpeg", steps: steps})
		if int64(len(out)) <= limit {
			break
		}
	}
	return best, nil
}

// qualities returns the JPEG quality ladder clipped to the configured floor.
func (s *imageStrategy) qualities() []int {
	var out []int
	for _, q := range qualityLadder {
		if q > s.opts.MinJPEGQuality {
			out = append(out, q)
		}
	}
	return append(out, s.opts.MinJPEGQuality)
}

// flatten composes src over an opaque white background since JPEG has no alpha.
func flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg at quality %d: %w", quality, err)
	}
	return buf.Bytes(), nil
}
