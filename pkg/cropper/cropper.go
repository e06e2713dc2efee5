package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultMinSelection is the smallest accepted selection side in image pixels.
const DefaultMinSelection = 10

var (
	// ErrSelectionTooSmall is returned when either side of a normalized
	// selection is shorter than the configured minimum.
	ErrSelectionTooSmall = errors.New("selection too small")
	// ErrEmptyRegion is returned when a selection has no area left after
	// clamping to the image bounds.
	ErrEmptyRegion = errors.New("empty crop region")
)

// Selection is a drag gesture in image coordinates. Start and End may be
// reversed or lie outside the image.
type Selection struct {
	Start image.Point `json:"start"`
	End   image.Point `json:"end"`
}

// Normalize returns the rectangle spanned by the selection with Min <= Max.
func (s Selection) Normalize() image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(min(s.Start.X, s.End.X), min(s.Start.Y, s.End.Y)),
		Max: image.Pt(max(s.Start.X, s.End.X), max(s.Start.Y, s.End.Y)),
	}
}

// CropConfig holds configuration for crop planning
type CropConfig struct {
	MinSelection int
}

// Cropper turns selections into clamped crop rectangles and pixel copies.
type Cropper struct {
	config CropConfig
}

// New creates a Cropper with default configuration
func New() *Cropper {
	return &Cropper{
		config: CropConfig{
			MinSelection: DefaultMinSelection,
		},
	}
}

// NewWithConfig creates a Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	if config.MinSelection < 0 {
		config.MinSelection = 0
	}
	return &Cropper{config: config}
}

// Plan validates a selection against an image of the given size and returns
// the crop rectangle clamped to [0,width]x[0,height].
//
// The size check runs on the unclamped selection, so a large drag that mostly
// falls outside the image is accepted and trimmed.
func (c *Cropper) Plan(width, height int, sel Selection) (image.Rectangle, error) {
	r := sel.Normalize()

	if r.Dx() < c.config.MinSelection || r.Dy() < c.config.MinSelection {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d (minimum %d)",
			ErrSelectionTooSmall, r.Dx(), r.Dy(), c.config.MinSelection)
	}

	clamped := image.Rectangle{
		Min: image.Pt(clamp(r.Min.X, 0, width), clamp(r.Min.Y, 0, height)),
		Max: image.Pt(clamp(r.Max.X, 0, width), clamp(r.Max.Y, 0, height)),
	}
	if clamped.Dx() <= 0 || clamped.Dy() <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %v clamped to %v", ErrEmptyRegion, r, clamped)
	}
	return clamped, nil
}

// Extract copies the pixels of rect out of src. rect is relative to the
// top-left corner of src.
func Extract(src image.Image, rect image.Rectangle) (*image.NRGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil image", ErrEmptyRegion)
	}
	b := src.Bounds()
	abs := rect.Add(b.Min).Intersect(b)
	if abs.Empty() {
		return nil, fmt.Errorf("%w: %v outside %v", ErrEmptyRegion, rect, b)
	}
	return imaging.Crop(src, abs), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
