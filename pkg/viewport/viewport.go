// Package viewport maps between source image pixels, zoomed pixels and
// screen pixels for a pannable, zoomable view of a single image.
//
// A State is a plain value. Every operation returns a new State that already
// satisfies the zoom and offset invariants, so callers can render it directly:
//
//	st, err := viewport.New(1200, 800)
//	st, err = st.Reset(2000, 1000) // zoom 0.6, offsets 0,0
//	st = st.Pan(50, 0)
//	pt := st.ScreenToImage(image.Pt(100, 100))
package viewport

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Zoom limits
const (
	MinZoom    = 0.1
	MaxZoom    = 5.0
	MaxFitZoom = 1.0
)

// Default factors applied per wheel tick
const (
	ZoomInFactor  = 1.1
	ZoomOutFactor = 0.9
)

// ErrInvalidViewportState is returned when a zoom, factor or dimension is not positive.
var ErrInvalidViewportState = errors.New("invalid viewport state")

// State holds the zoom level and pan offset of a view onto an image.
//
// Offsets are measured in zoomed pixels: OffsetX is the x coordinate of the
// zoomed image that appears at the left edge of the viewport.
type State struct {
	Zoom           float64 `json:"zoom"`
	OffsetX        int     `json:"offset_x"`
	OffsetY        int     `json:"offset_y"`
	ViewportWidth  int     `json:"viewport_width"`
	ViewportHeight int     `json:"viewport_height"`
	ImageWidth     int     `json:"image_width"`
	ImageHeight    int     `json:"image_height"`
}

// New creates a State for a viewport of the given size with no image loaded.
func New(viewportWidth, viewportHeight int) (State, error) {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return State{}, fmt.Errorf("%w: viewport %dx%d", ErrInvalidViewportState, viewportWidth, viewportHeight)
	}
	return State{
		Zoom:           MaxFitZoom,
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
	}, nil
}

// Validate checks the dimensions and zoom of the state.
func (s State) Validate() error {
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidViewportState, s.ViewportWidth, s.ViewportHeight)
	}
	if s.ImageWidth <= 0 || s.ImageHeight <= 0 {
		return fmt.Errorf("%w: image %dx%d", ErrInvalidViewportState, s.ImageWidth, s.ImageHeight)
	}
	if !(s.Zoom > 0) || math.IsInf(s.Zoom, 0) {
		return fmt.Errorf("%w: zoom %v", ErrInvalidViewportState, s.Zoom)
	}
	return nil
}

// Reset fits an image of the given size into the viewport without exceeding
// native resolution and zeroes the offsets.
func (s State) Reset(imageWidth, imageHeight int) (State, error) {
	if imageWidth <= 0 || imageHeight <= 0 {
		return s, fmt.Errorf("%w: image %dx%d", ErrInvalidViewportState, imageWidth, imageHeight)
	}
	if s.ViewportWidth <= 0 || s.ViewportHeight <= 0 {
		return s, fmt.Errorf("%w: viewport %dx%d", ErrInvalidViewportState, s.ViewportWidth, s.ViewportHeight)
	}

	zoomW := float64(s.ViewportWidth) / float64(imageWidth)
	zoomH := float64(s.ViewportHeight) / float64(imageHeight)

	s.ImageWidth = imageWidth
	s.ImageHeight = imageHeight
	s.Zoom = clampZoom(math.Min(math.Min(zoomW, zoomH), MaxFitZoom))
	s.OffsetX = 0
	s.OffsetY = 0
	return s, nil
}

// Resize changes the viewport dimensions and re-clamps the offsets.
func (s State) Resize(viewportWidth, viewportHeight int) (State, error) {
	if viewportWidth <= 0 || viewportHeight <= 0 {
		return s, fmt.Errorf("%w: viewport %dx%d", ErrInvalidViewportState, viewportWidth, viewportHeight)
	}
	s.ViewportWidth = viewportWidth
	s.ViewportHeight = viewportHeight
	return s.clampOffsets(), nil
}

// Pan moves the view by the given number of zoomed pixels. An axis on which
// the zoomed image fits inside the viewport stays at offset 0.
func (s State) Pan(dx, dy int) State {
	s.OffsetX += dx
	s.OffsetY += dy
	return s.clampOffsets()
}

// ZoomBy multiplies the zoom level by factor and clamps it to
// [MinZoom, MaxZoom]. Offsets are re-clamped against the new zoomed size.
func (s State) ZoomBy(factor float64) (State, error) {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return s, fmt.Errorf("%w: zoom factor %v", ErrInvalidViewportState, factor)
	}
	if !(s.Zoom > 0) {
		return s, fmt.Errorf("%w: zoom %v", ErrInvalidViewportState, s.Zoom)
	}
	s.Zoom = clampZoom(s.Zoom * factor)
	return s.clampOffsets(), nil
}

// ZoomedSize returns the size of the image at the current zoom level.
func (s State) ZoomedSize() (int, int) {
	return int(s.Zoom * float64(s.ImageWidth)), int(s.Zoom * float64(s.ImageHeight))
}

// MaxOffset returns the largest valid offset on each axis.
func (s State) MaxOffset() (int, int) {
	zw, zh := s.ZoomedSize()
	return max(0, zw-s.ViewportWidth), max(0, zh-s.ViewportHeight)
}

// ScreenToImage converts a viewport point into source image coordinates.
// The result is not clamped and may lie outside the image.
func (s State) ScreenToImage(p image.Point) image.Point {
	x, y := s.ScreenToImageF(float64(p.X), float64(p.Y))
	return image.Pt(x, y)
}

// ScreenToImageF is ScreenToImage for sub-pixel screen coordinates.
func (s State) ScreenToImageF(x, y float64) (int, int) {
	ix := math.Floor((x + float64(s.OffsetX)) / s.Zoom)
	iy := math.Floor((y + float64(s.OffsetY)) / s.Zoom)
	return int(ix), int(iy)
}

// ImageToScreen converts source image coordinates into viewport coordinates.
func (s State) ImageToScreen(p image.Point) (float64, float64) {
	return float64(p.X)*s.Zoom - float64(s.OffsetX), float64(p.Y)*s.Zoom - float64(s.OffsetY)
}

// VisibleRegion returns the part of the zoomed image shown in the viewport,
// in zoomed-pixel coordinates. The rectangle may be empty.
func (s State) VisibleRegion() image.Rectangle {
	s = s.clampOffsets()
	zw, zh := s.ZoomedSize()
	x1, y1 := s.OffsetX, s.OffsetY
	x2 := max(x1, min(x1+s.ViewportWidth, zw))
	y2 := max(y1, min(y1+s.ViewportHeight, zh))
	return image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}
}

func (s State) clampOffsets() State {
	maxX, maxY := s.MaxOffset()
	s.OffsetX = clampInt(s.OffsetX, 0, maxX)
	s.OffsetY = clampInt(s.OffsetY, 0, maxY)
	return s
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
