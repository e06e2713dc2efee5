// Package store lays out and persists crop artifacts as
// <root>/<stem>/<index>.png. The tree is append-only: an existing file is
// never overwritten.
package store

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
)

// Ext is the extension of every saved crop.
const Ext = ".png"

var (
	// ErrOutputDir is returned when the output tree cannot be created.
	ErrOutputDir = errors.New("cannot create output directory")
	// ErrEncodeFailure is returned when no encoder produced a non-empty file.
	ErrEncodeFailure = errors.New("encode failure")
	// ErrExists is returned instead of overwriting an existing crop.
	ErrExists = errors.New("crop already exists")
)

// Encoder writes an image to a file path.
type Encoder interface {
	Name() string
	Encode(path string, img image.Image) error
}

// Saved describes a verified file on disk.
type Saved struct {
	Path    string
	Size    int64
	Encoder string
}

// Writer persists crops below a root directory.
type Writer struct {
	root     string
	encoders []Encoder
}

// Option configures a Writer.
type Option func(*Writer)

// WithEncoders replaces the encoder chain. The first encoder is the primary
// one; each following encoder is tried once when the previous one failed.
func WithEncoders(encoders ...Encoder) Option {
	return func(w *Writer) { w.encoders = encoders }
}

// NewWriter creates the root directory and returns a Writer using the
// imaging PNG encoder with the given compression level and the bild PNG
// encoder as fallback.
func NewWriter(root string, level png.CompressionLevel, opts ...Option) (*Writer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOutputDir, err)
	}

	w := &Writer{
		root:     abs,
		encoders: []Encoder{ImagingPNG{Level: level}, BildPNG{}},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute output root.
func (w *Writer) Root() string {
	return w.root
}

// Dir returns the directory holding the crops of one source image.
func (w *Writer) Dir(stem string) string {
	return filepath.Join(w.root, stem)
}

// Path returns the file path of crop number index for stem.
func (w *Writer) Path(stem string, index int) string {
	return filepath.Join(w.Dir(stem), strconv.Itoa(index)+Ext)
}

// NextIndex returns the first index after the highest numbered crop already
// stored for stem, or 0 if there is none. A crop directory that exists but
// cannot be read is reported as ErrOutputDir.
func (w *Writer) NextIndex(stem string) (int, error) {
	entries, err := os.ReadDir(w.Dir(stem))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: failed to read crop directory: %w", ErrOutputDir, err)
	}

	next := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if err != nil || n < 0 {
			continue
		}
		if n+1 > next {
			next = n + 1
		}
	}
	return next, nil
}

// Save writes img as crop number index of stem. The primary encoder is tried
// first and each fallback once; the first attempt that leaves a non-empty
// file wins. On total failure any partial file is removed.
func (w *Writer) Save(img image.Image, stem string, index int) (Saved, error) {
	dir := w.Dir(stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Saved{}, fmt.Errorf("%w: %v", ErrOutputDir, err)
	}

	path := w.Path(stem, index)
	if _, err := os.Stat(path); err == nil {
		return Saved{}, fmt.Errorf("%w: %s", ErrExists, path)
	}

	var errs []error
	for _, enc := range w.encoders {
		if err := enc.Encode(path, img); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", enc.Name(), err))
			_ = os.Remove(path)
			continue
		}
		size, err := verify(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", enc.Name(), err))
			_ = os.Remove(path)
			continue
		}
		return Saved{Path: path, Size: size, Encoder: enc.Name()}, nil
	}

	return Saved{}, fmt.Errorf("%w: %s: %v", ErrEncodeFailure, path, errors.Join(errs...))
}

func verify(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("file missing after write: %w", err)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("file is empty after write")
	}
	return info.Size(), nil
}

// ImagingPNG encodes through imaging with a fixed compression level.
type ImagingPNG struct {
	Level png.CompressionLevel
}

func (ImagingPNG) Name() string { return "imaging" }

func (e ImagingPNG) Encode(path string, img image.Image) error {
	return imaging.Save(img, path, imaging.PNGCompressionLevel(e.Level))
}

// BildPNG encodes through bild's imgio.
type BildPNG struct{}

func (BildPNG) Name() string { return "bild" }

func (BildPNG) Encode(path string, img image.Image) error {
	return imgio.Save(path, img, imgio.PNGEncoder())
}

// ParseCompression maps a config name to a PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return png.DefaultCompression, fmt.Errorf("unknown png compression %q", name)
	}
}
