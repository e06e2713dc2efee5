package suggest

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// SaliencyConfig holds configuration for the offline suggester
type SaliencyConfig struct {
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	MinConfidence   float64
	// MaxSide bounds the working copy the saliency map is computed on.
	MaxSide int
}

// Saliency finds the most salient region of an image from local contrast
// and color distinctness. It needs no network access.
type Saliency struct {
	config SaliencyConfig
}

// Region represents a rectangular region of interest in working-copy pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// DefaultSaliencyConfig returns the default offline suggester configuration
func DefaultSaliencyConfig() SaliencyConfig {
	return SaliencyConfig{
		EdgeThreshold:   0.01,
		ContrastWeight:  0.5,
		ColorWeight:     0.5,
		MinSubjectRatio: 0.01,
		MinConfidence:   0.2,
		MaxSide:         256,
	}
}

// NewSaliency creates a Saliency suggester with default configuration
func NewSaliency() *Saliency {
	return &Saliency{config: DefaultSaliencyConfig()}
}

// NewSaliencyWithConfig creates a Saliency suggester with custom configuration
func NewSaliencyWithConfig(config SaliencyConfig) *Saliency {
	if config.MaxSide <= 0 {
		config.MaxSide = 256
	}
	return &Saliency{config: config}
}

// Name implements Suggester.
func (s *Saliency) Name() string { return "saliency" }

// Suggest implements Suggester.
func (s *Saliency) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	if img == nil || img.Bounds().Empty() {
		return Suggestion{}, ErrNoSubject
	}
	small := imaging.Fit(img, s.config.MaxSide, s.config.MaxSide, imaging.Box)
	if err := ctx.Err(); err != nil {
		return Suggestion{}, err
	}

	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	sal := s.saliencyMap(small)
	regions := s.findImportantRegions(newIntegral(sal, w, h), w, h)
	if len(regions) == 0 {
		return Suggestion{}, ErrNoSubject
	}

	best := regions[0]
	for _, r := range regions[1:] {
		if r.Score > best.Score {
			best = r
		}
	}

	// grow the best window over its strong neighbors so the box covers the
	// subject rather than its most contrasted corner
	box := best.rect()
	for _, r := range regions {
		if r.Score >= 0.8*best.Score && r.rect().Overlaps(box) {
			box = box.Union(r.rect())
		}
	}

	var total float64
	for _, v := range sal {
		total += v
	}
	mean := total / float64(len(sal))
	confidence := 0.0
	if best.Score > 0 {
		confidence = clamp(1-mean/best.Score, 0, 1)
	}

	return accept(Suggestion{
		Label:      "salient region",
		Confidence: confidence,
		Box: Box{
			X: float64(box.Min.X) / float64(w),
			Y: float64(box.Min.Y) / float64(h),
			W: float64(box.Dx()) / float64(w),
			H: float64(box.Dy()) / float64(h),
		},
	}, s.config.MinConfidence)
}

// saliencyMap scores every pixel by its difference to its 8 neighbors and
// by its distance from the image's mean color.
func (s *Saliency) saliencyMap(img *image.NRGBA) []float64 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sal := make([]float64, w*h)

	var mr, mg, mb float64
	for i := 0; i < len(img.Pix); i += 4 {
		mr += float64(img.Pix[i])
		mg += float64(img.Pix[i+1])
		mb += float64(img.Pix[i+2])
	}
	n := float64(w * h)
	mr, mg, mb = mr/n, mg/n, mb/n

	neighbors := [8][2]int{{-1, -1}, {-1, 0}, {-1, 1}, {0, -1}, {0, 1}, {1, -1}, {1, 0}, {1, 1}}
	maxDiff := math.Sqrt(3) * 255

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			r1, g1, b1 := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])

			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for _, o := range neighbors {
					j := img.PixOffset(x+o[0], y+o[1])
					dr := r1 - float64(img.Pix[j])
					dg := g1 - float64(img.Pix[j+1])
					db := b1 - float64(img.Pix[j+2])
					edge += math.Sqrt(dr*dr + dg*dg + db*db)
				}
				edge /= 8 * maxDiff
			}

			dr, dg, db := r1-mr, g1-mg, b1-mb
			distinct := math.Sqrt(dr*dr+dg*dg+db*db) / maxDiff

			sal[y*w+x] = s.config.ContrastWeight*edge + s.config.ColorWeight*distinct
		}
	}
	return sal
}

func (s *Saliency) findImportantRegions(sum integral, width, height int) []Region {
	var regions []Region

	short := min(width, height)
	minArea := int(float64(width*height) * s.config.MinSubjectRatio)
	for _, size := range []int{short / 12, short / 8, short / 6, short / 4, short / 3, short / 2} {
		if size < 4 {
			continue
		}
		step := max(1, size/8)
		for y := 0; y+size <= height; y += step {
			for x := 0; x+size <= width; x += step {
				r := Region{X: x, Y: y, Width: size, Height: size}
				if r.Area() < minArea {
					continue
				}
				r.Score = sum.mean(x, y, size, size)
				if r.Score > s.config.EdgeThreshold {
					regions = append(regions, r)
				}
			}
		}
	}
	return regions
}

// integral is a summed-area table over a w*h map.
type integral struct {
	w   int
	sum []float64
}

func newIntegral(m []float64, w, h int) integral {
	sum := make([]float64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		var row float64
		for x := 0; x < w; x++ {
			row += m[y*w+x]
			sum[(y+1)*(w+1)+x+1] = sum[y*(w+1)+x+1] + row
		}
	}
	return integral{w: w, sum: sum}
}

func (g integral) mean(x, y, w, h int) float64 {
	stride := g.w + 1
	a := g.sum[y*stride+x]
	b := g.sum[y*stride+x+w]
	c := g.sum[(y+h)*stride+x]
	d := g.sum[(y+h)*stride+x+w]
	return (d - b - c + a) / float64(w*h)
}
