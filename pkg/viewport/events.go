package viewport

import "fmt"

// Event is an input that changes the view.
type Event interface {
	isEvent()
}

// PanEvent moves the view by DX, DY zoomed pixels.
type PanEvent struct {
	DX, DY int
}

// ZoomEvent multiplies the zoom level by Factor.
type ZoomEvent struct {
	Factor float64
}

// WheelEvent is a scroll-wheel tick. Positive Delta zooms in, negative zooms
// out and zero is ignored.
type WheelEvent struct {
	Delta int
}

// ResetEvent fits the current image back into the viewport.
type ResetEvent struct{}

// ResizeEvent changes the viewport to Width x Height screen pixels.
type ResizeEvent struct {
	Width, Height int
}

func (PanEvent) isEvent()    {}
func (ZoomEvent) isEvent()   {}
func (WheelEvent) isEvent()  {}
func (ResetEvent) isEvent()  {}
func (ResizeEvent) isEvent() {}

// Factors maps wheel direction to a zoom factor.
type Factors struct {
	In  float64
	Out float64
}

// DefaultFactors returns the standard per-tick zoom factors.
func DefaultFactors() Factors {
	return Factors{In: ZoomInFactor, Out: ZoomOutFactor}
}

// Apply returns the state that results from handling ev with the default
// wheel factors.
func (s State) Apply(ev Event) (State, error) {
	return s.ApplyWith(ev, DefaultFactors())
}

// ApplyWith returns the state that results from handling ev. The receiver is
// left untouched; on error the returned state equals the receiver.
func (s State) ApplyWith(ev Event, f Factors) (State, error) {
	switch e := ev.(type) {
	case PanEvent:
		return s.Pan(e.DX, e.DY), nil
	case ZoomEvent:
		return s.ZoomBy(e.Factor)
	case WheelEvent:
		switch {
		case e.Delta > 0:
			return s.ZoomBy(f.In)
		case e.Delta < 0:
			return s.ZoomBy(f.Out)
		}
		return s, nil
	case ResetEvent:
		return s.Reset(s.ImageWidth, s.ImageHeight)
	case ResizeEvent:
		return s.Resize(e.Width, e.Height)
	default:
		return s, fmt.Errorf("unknown viewport event %T", ev)
	}
}
