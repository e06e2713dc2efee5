// Package session runs the interactive crop loop for one source image.
//
// A Session consumes raw pointer, wheel and key events one at a time. It
// owns the viewport state and the selection being dragged and hands finished
// selections to a cropper.Extractor. Errors from individual crops are reported
// in the returned Outcome and never end the session; only a broken output
// tree is flagged as Fatal for the driver.
package session

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/store"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// Phase is the interaction state of a session.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Panning
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Panning:
		return "panning"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Action tells the driver what happened while handling an event.
type Action int

const (
	// None means the event changed at most the view or the selection.
	None Action = iota
	// Saved means a crop was written; Outcome.Crop describes it.
	Saved
	// Rejected means a selection was too small or empty; nothing was written.
	Rejected
	// Failed means a crop could not be saved; the index was not advanced.
	Failed
	// Aborted means the active selection was discarded.
	Aborted
	// Advance asks the driver to move to the next source image.
	Advance
	// Quit asks the driver to end the run.
	Quit
	// Snapshot asks the driver to render the current frame.
	Snapshot
	// Fatal means the output tree could not be created; no further crop of
	// any image can be saved and the driver should end the run.
	Fatal
)

var actionNames = [...]string{"none", "saved", "rejected", "failed", "aborted", "advance", "quit", "snapshot", "fatal"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// Outcome is the result of handling one event.
type Outcome struct {
	Action Action
	Crop   cropper.Result
	Err    error
}

// Session is the per-image state machine. It is not safe for concurrent use;
// events must be handled one after another.
type Session struct {
	source    image.Image
	extractor *cropper.Extractor
	view      viewport.State
	factors   viewport.Factors

	phase     Phase
	selection cropper.Selection
	panLast   image.Point
	saved     int
}

// Option configures a Session.
type Option func(*Session)

// WithZoomFactors overrides the per-tick wheel zoom factors.
func WithZoomFactors(f viewport.Factors) Option {
	return func(s *Session) { s.factors = f }
}

// New starts a session on the image behind ex, fitted into a viewport of
// the given size.
func New(source image.Image, ex *cropper.Extractor, viewportWidth, viewportHeight int, opts ...Option) (*Session, error) {
	if source == nil || ex == nil {
		return nil, errors.New("session needs a source image and an extractor")
	}
	view, err := viewport.New(viewportWidth, viewportHeight)
	if err != nil {
		return nil, err
	}
	b := source.Bounds()
	view, err = view.Reset(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	s := &Session{
		source:    source,
		extractor: ex,
		view:      view,
		factors:   viewport.DefaultFactors(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// View returns the current viewport state.
func (s *Session) View() viewport.State {
	return s.view
}

// Phase returns the current interaction phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Selection returns the selection being dragged, or nil when idle.
func (s *Session) Selection() *cropper.Selection {
	if s.phase != Dragging {
		return nil
	}
	sel := s.selection
	return &sel
}

// Source returns the image being cropped.
func (s *Session) Source() image.Image {
	return s.source
}

// Stem returns the output name of the source image.
func (s *Session) Stem() string {
	return s.extractor.Stem()
}

// Saved returns the number of crops written during this session.
func (s *Session) Saved() int {
	return s.saved
}

// NextIndex returns the index the next crop will be saved under.
func (s *Session) NextIndex() int {
	return s.extractor.Index()
}

// Handle processes one event.
func (s *Session) Handle(ev Event) Outcome {
	switch ev.Kind {
	case PointerDown:
		return s.press(ev)
	case PointerMove:
		return s.move(ev)
	case PointerUp:
		return s.release(ev)
	case Wheel:
		return s.apply(viewport.WheelEvent{Delta: ev.Delta})
	case ResetView:
		return s.apply(viewport.ResetEvent{})
	case Resize:
		return s.apply(viewport.ResizeEvent{Width: ev.Width, Height: ev.Height})
	case Abort:
		return s.abort()
	case Next:
		s.abort()
		return Outcome{Action: Advance}
	case Exit:
		s.abort()
		return Outcome{Action: Quit}
	case Capture:
		return Outcome{Action: Snapshot}
	default:
		return Outcome{Action: None, Err: fmt.Errorf("unknown event kind %v", ev.Kind)}
	}
}

// Commit crops sel directly, bypassing the drag gesture. It is used for
// selections that come from somewhere other than the pointer.
func (s *Session) Commit(sel cropper.Selection) Outcome {
	res, err := s.extractor.Commit(sel)
	switch {
	case err == nil:
		s.saved++
		return Outcome{Action: Saved, Crop: res}
	case errors.Is(err, cropper.ErrSelectionTooSmall), errors.Is(err, cropper.ErrEmptyRegion):
		return Outcome{Action: Rejected, Err: err}
	case errors.Is(err, store.ErrOutputDir):
		return Outcome{Action: Fatal, Err: err}
	default:
		return Outcome{Action: Failed, Err: err}
	}
}

func (s *Session) press(ev Event) Outcome {
	if s.phase != Idle {
		return Outcome{}
	}
	p := image.Pt(ev.X, ev.Y)
	switch ev.Button {
	case Primary:
		start := s.view.ScreenToImage(p)
		s.selection = cropper.Selection{Start: start, End: start}
		s.phase = Dragging
	case Secondary:
		s.panLast = p
		s.phase = Panning
	}
	return Outcome{}
}

func (s *Session) move(ev Event) Outcome {
	p := image.Pt(ev.X, ev.Y)
	switch s.phase {
	case Dragging:
		s.selection.End = s.view.ScreenToImage(p)
	case Panning:
		// dragging the image right moves the view left
		delta := s.panLast.Sub(p)
		s.panLast = p
		return s.apply(viewport.PanEvent{DX: delta.X, DY: delta.Y})
	}
	return Outcome{}
}

func (s *Session) release(ev Event) Outcome {
	switch {
	case s.phase == Dragging && ev.Button == Primary:
		s.selection.End = s.view.ScreenToImage(image.Pt(ev.X, ev.Y))
		sel := s.selection
		s.phase = Idle
		s.selection = cropper.Selection{}
		return s.Commit(sel)
	case s.phase == Panning && ev.Button == Secondary:
		s.phase = Idle
	}
	return Outcome{}
}

func (s *Session) abort() Outcome {
	if s.phase != Dragging {
		return Outcome{}
	}
	s.phase = Idle
	s.selection = cropper.Selection{}
	return Outcome{Action: Aborted}
}

func (s *Session) apply(ev viewport.Event) Outcome {
	next, err := s.view.ApplyWith(ev, s.factors)
	if err != nil {
		return Outcome{Action: None, Err: err}
	}
	s.view = next
	return Outcome{}
}
