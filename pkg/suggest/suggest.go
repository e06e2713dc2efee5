// Package suggest proposes crop selections automatically. A Suggester looks
// at a source image and returns the box around its most prominent subject,
// which the caller can commit like any hand-drawn selection.
package suggest

import (
	"context"
	"errors"
	"image"
	"math"
	"strings"

	"github.com/menta2k/image-cropper/pkg/cropper"
)

// ErrNoSubject is returned when no subject was found with enough confidence.
var ErrNoSubject = errors.New("no subject found")

// Box is a bounding box with coordinates normalized to [0,1].
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Suggestion is a proposed crop.
type Suggestion struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Box        Box      `json:"box"`
	Tags       []string `json:"tags,omitempty"`
}

// Suggester proposes a crop for an image.
type Suggester interface {
	Name() string
	Suggest(ctx context.Context, img image.Image) (Suggestion, error)
}

// Selection converts the normalized box into an image-space selection for
// an image of the given size.
func (s Suggestion) Selection(width, height int) cropper.Selection {
	b := normalizeBox(s.Box)
	x0 := int(math.Round(b.X * float64(width)))
	y0 := int(math.Round(b.Y * float64(height)))
	x1 := int(math.Round((b.X + b.W) * float64(width)))
	y1 := int(math.Round((b.Y + b.H) * float64(height)))
	return cropper.Selection{
		Start: image.Pt(x0, y0),
		End:   image.Pt(min(x1, width), min(y1, height)),
	}
}

// accept applies the confidence floor shared by all suggesters.
func accept(s Suggestion, minConfidence float64) (Suggestion, error) {
	if strings.EqualFold(s.Label, "none") || s.Confidence < minConfidence {
		return Suggestion{}, ErrNoSubject
	}
	s.Box = normalizeBox(s.Box)
	if s.Box.W <= 0 || s.Box.H <= 0 {
		return Suggestion{}, ErrNoSubject
	}
	return s, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox keeps the box inside the unit square.
func normalizeBox(b Box) Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
