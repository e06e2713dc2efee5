// Package render draws what the viewport currently shows: the visible part of
// the zoomed source image, the selection being dragged and a small info panel.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// Config holds configuration for frame rendering
type Config struct {
	Interpolation string
	ShowInfo      bool
	StrokeWidth   int
}

// Overlay is the interactive state drawn on top of the image.
type Overlay struct {
	Selection *cropper.Selection
	Crops     int
}

// Renderer produces viewport-sized frames.
type Renderer struct {
	interp   xdraw.Interpolator
	showInfo bool
	stroke   int
}

var (
	background = color.NRGBA{0, 0, 0, 255}
	selection  = color.NRGBA{255, 0, 0, 255}
	panelShade = color.NRGBA{0, 0, 0, 179}
	textWhite  = color.NRGBA{255, 255, 255, 255}
	textGreen  = color.NRGBA{0, 255, 0, 255}
	textYellow = color.NRGBA{255, 255, 0, 255}
)

// New creates a Renderer with default configuration
func New() *Renderer {
	return &Renderer{interp: xdraw.ApproxBiLinear, showInfo: true, stroke: 2}
}

// NewWithConfig creates a Renderer with custom configuration
func NewWithConfig(cfg Config) (*Renderer, error) {
	interp, err := ParseInterpolation(cfg.Interpolation)
	if err != nil {
		return nil, err
	}
	stroke := cfg.StrokeWidth
	if stroke < 1 {
		stroke = 2
	}
	return &Renderer{interp: interp, showInfo: cfg.ShowInfo, stroke: stroke}, nil
}

// ParseInterpolation maps a config name to an interpolator.
func ParseInterpolation(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "bilinear":
		return xdraw.ApproxBiLinear, nil
	case "nearest":
		return xdraw.NearestNeighbor, nil
	case "catmullrom", "catmull-rom":
		return xdraw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unknown interpolation %q", name)
	}
}

// Frame renders src as seen through st. Areas of the viewport not covered by
// the zoomed image stay black.
func (r *Renderer) Frame(src image.Image, st viewport.State, ov Overlay) *image.NRGBA {
	canvas := image.NewNRGBA(image.Rect(0, 0, st.ViewportWidth, st.ViewportHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	vis := st.VisibleRegion()
	if src != nil && !vis.Empty() {
		b := src.Bounds()
		z := st.Zoom
		// screen = zoom*(src - min) - offset
		s2d := f64.Aff3{
			z, 0, -z*float64(b.Min.X) - float64(vis.Min.X),
			0, z, -z*float64(b.Min.Y) - float64(vis.Min.Y),
		}
		dst := canvas.SubImage(image.Rect(0, 0, vis.Dx(), vis.Dy())).(*image.NRGBA)
		r.interp.Transform(dst, s2d, src, b, xdraw.Src, nil)
	}

	if ov.Selection != nil {
		x0, y0 := st.ImageToScreen(ov.Selection.Start)
		x1, y1 := st.ImageToScreen(ov.Selection.End)
		rect := image.Rect(int(x0), int(y0), int(x1), int(y1))
		drawRect(canvas, rect, selection, r.stroke)
	}

	if r.showInfo {
		drawInfo(canvas, st.Zoom, ov.Crops)
	}

	return canvas
}

func drawInfo(img *image.NRGBA, zoom float64, crops int) {
	panel := image.Rect(10, 10, 400, 120)
	draw.Draw(img, panel, image.NewUniform(panelShade), image.Point{}, draw.Over)

	lines := []struct {
		text string
		c    color.NRGBA
		y    int
	}{
		{fmt.Sprintf("Zoom: %.1fx", zoom), textWhite, 35},
		{fmt.Sprintf("Crops: %d", crops), textWhite, 60},
		{"Left Drag: Crop", textGreen, 85},
		{"Right Drag: Pan | Wheel: Zoom", textYellow, 105},
	}
	for _, l := range lines {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(l.c),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(20, l.y),
		}
		d.DrawString(l.text)
	}
}

// drawRect outlines r (any corner order) with the given stroke width.
func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Canon()
	if r.Dx() == 0 && r.Dy() == 0 {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	b := img.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	x0, x1 = max(x0, b.Min.X), min(x1, b.Max.X)
	for x := x0; x < x1; x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	y0, y1 = max(y0, b.Min.Y), min(y1, b.Max.Y)
	for y := y0; y < y1; y++ {
		img.SetNRGBA(x, y, c)
	}
}
