package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadEvent is returned by Script.Next for a line that is not a valid
// event. Reading can continue with the next line.
var ErrBadEvent = errors.New("bad event")

// Kind identifies an input event.
type Kind int

const (
	PointerDown Kind = iota + 1
	PointerUp
	PointerMove
	Wheel
	ResetView
	Abort
	Next
	Exit
	Capture
	Resize
)

var kindNames = map[Kind]string{
	PointerDown: "down",
	PointerUp:   "up",
	PointerMove: "move",
	Wheel:       "wheel",
	ResetView:   "reset",
	Abort:       "abort",
	Next:        "next",
	Exit:        "quit",
	Capture:     "snapshot",
	Resize:      "resize",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Button identifies a pointer button.
type Button int

const (
	NoButton Button = iota
	Primary
	Secondary
)

func (b Button) String() string {
	switch b {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "none"
	}
}

// Event is a raw input in screen coordinates. Width and Height are only
// set for Resize.
type Event struct {
	Kind          Kind
	Button        Button
	X, Y          int
	Delta         int
	Width, Height int
}

// Down returns a pointer-press event.
func Down(b Button, x, y int) Event { return Event{Kind: PointerDown, Button: b, X: x, Y: y} }

// Up returns a pointer-release event.
func Up(b Button, x, y int) Event { return Event{Kind: PointerUp, Button: b, X: x, Y: y} }

// Move returns a pointer-move event.
func Move(x, y int) Event { return Event{Kind: PointerMove, X: x, Y: y} }

// Scroll returns a wheel event.
func Scroll(delta int) Event { return Event{Kind: Wheel, Delta: delta} }

// Resized returns a window-resize event.
func Resized(width, height int) Event { return Event{Kind: Resize, Width: width, Height: height} }

// scriptEvent is the JSON form of an Event, one per line:
//
//	{"type":"down","button":"primary","x":120,"y":80}
//	{"type":"wheel","delta":1}
//	{"type":"resize","width":800,"height":600}
//	{"type":"next"}
type scriptEvent struct {
	Type   string `json:"type"`
	Button string `json:"button,omitempty"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Delta  int    `json:"delta,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// MarshalJSON encodes the event in script form.
func (e Event) MarshalJSON() ([]byte, error) {
	se := scriptEvent{Type: e.Kind.String(), X: e.X, Y: e.Y, Delta: e.Delta, Width: e.Width, Height: e.Height}
	if e.Button != NoButton {
		se.Button = e.Button.String()
	}
	return json.Marshal(se)
}

// UnmarshalJSON decodes the script form of an event.
func (e *Event) UnmarshalJSON(data []byte) error {
	var se scriptEvent
	if err := json.Unmarshal(data, &se); err != nil {
		return err
	}
	kind, err := parseKind(se.Type)
	if err != nil {
		return err
	}
	button, err := parseButton(se.Button)
	if err != nil {
		return err
	}
	if (kind == PointerDown || kind == PointerUp) && button == NoButton {
		return fmt.Errorf("%s event needs a button", kind)
	}
	if kind == Resize && (se.Width <= 0 || se.Height <= 0) {
		return fmt.Errorf("resize event needs a positive width and height, got %dx%d", se.Width, se.Height)
	}
	*e = Event{Kind: kind, Button: button, X: se.X, Y: se.Y, Delta: se.Delta, Width: se.Width, Height: se.Height}
	return nil
}

func parseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", s)
}

func parseButton(s string) (Button, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoButton, nil
	case "primary", "left":
		return Primary, nil
	case "secondary", "right":
		return Secondary, nil
	default:
		return NoButton, fmt.Errorf("unknown button %q", s)
	}
}

// Script reads events from a JSON-lines stream. Blank lines and lines
// starting with # are skipped.
type Script struct {
	scanner *bufio.Scanner
	line    int
}

// NewScript returns a Script reading from r.
func NewScript(r io.Reader) *Script {
	return &Script{scanner: bufio.NewScanner(r)}
}

// Next returns the next event, or io.EOF when the stream is exhausted.
func (s *Script) Next() (Event, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return Event{}, fmt.Errorf("%w: line %d: %v", ErrBadEvent, s.line, err)
		}
		return ev, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
