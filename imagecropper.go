// Package imagecropper extracts lossless rectangular crops from large images
// through a pan-and-zoom viewport.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		imagecropper "github.com/menta2k/image-cropper"
//		"github.com/menta2k/image-cropper/pkg/session"
//	)
//
//	func main() {
//		ic, err := imagecropper.New(imagecropper.DefaultOptions())
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		s, err := ic.Open("source_images/harbor.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		// drag from (100,80) to (400,300) on screen
//		s.Handle(session.Down(session.Primary, 100, 80))
//		s.Handle(session.Move(250, 200))
//		out := s.Handle(session.Up(session.Primary, 400, 300))
//		if out.Err != nil {
//			log.Fatal(out.Err)
//		}
//		log.Printf("saved %s", out.Crop.Path) // output/harbor/0.png
//	}
//
// The package is a thin layer over its components:
//
// 1. Viewport (pkg/viewport): zoom, pan and screen/image coordinate mapping
// 2. Cropper (pkg/cropper): selection validation and pixel-exact extraction
// 3. Store (pkg/store): the <output>/<stem>/<index>.png layout and PNG encoding
// 4. Session (pkg/session): the pointer/wheel/key state machine for one image
// 5. Processing (pkg/processing): decoding by content into opaque RGB
// 6. Render (pkg/render): preview frames of what the viewport shows
// 7. Suggest (pkg/suggest): optional automatic crop proposals
package imagecropper

import (
	"fmt"
	"image"
	"image/png"

	"github.com/menta2k/image-cropper/pkg/cropper"
	"github.com/menta2k/image-cropper/pkg/processing"
	"github.com/menta2k/image-cropper/pkg/session"
	"github.com/menta2k/image-cropper/pkg/store"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

// Version of the image cropper library
const Version = "1.0.0"

// Options configures an ImageCropper
type Options struct {
	OutputDir      string
	ViewportWidth  int
	ViewportHeight int
	MinSelection   int
	MaxPixels      int
	Compression    png.CompressionLevel
	ZoomFactors    viewport.Factors
	Encoders       []store.Encoder
}

// DefaultOptions returns the options used by the command line tool when no
// configuration file is given.
func DefaultOptions() Options {
	return Options{
		OutputDir:      "output",
		ViewportWidth:  1200,
		ViewportHeight: 800,
		MinSelection:   cropper.DefaultMinSelection,
		Compression:    png.DefaultCompression,
		ZoomFactors:    viewport.DefaultFactors(),
	}
}

// ImageCropper opens crop sessions that share one output tree
type ImageCropper struct {
	opts      Options
	processor *processing.Processor
	cropper   *cropper.Cropper
	writer    *store.Writer
}

// New creates an ImageCropper. It fails with store.ErrOutputDir when the
// output directory cannot be created.
func New(opts Options) (*ImageCropper, error) {
	var storeOpts []store.Option
	if len(opts.Encoders) > 0 {
		storeOpts = append(storeOpts, store.WithEncoders(opts.Encoders...))
	}
	writer, err := store.NewWriter(opts.OutputDir, opts.Compression, storeOpts...)
	if err != nil {
		return nil, err
	}
	if opts.ZoomFactors == (viewport.Factors{}) {
		opts.ZoomFactors = viewport.DefaultFactors()
	}

	return &ImageCropper{
		opts:      opts,
		processor: processing.NewProcessorWithLimit(opts.MaxPixels),
		cropper:   cropper.NewWithConfig(cropper.CropConfig{MinSelection: opts.MinSelection}),
		writer:    writer,
	}, nil
}

// Writer returns the store shared by all sessions
func (ic *ImageCropper) Writer() *store.Writer {
	return ic.writer
}

// LoadImage decodes a source image into opaque RGB
func (ic *ImageCropper) LoadImage(path string) (*image.NRGBA, error) {
	return ic.processor.LoadImage(path)
}

// ImageInfo returns the dimensions and aspect ratio of img
func (ic *ImageCropper) ImageInfo(img image.Image) processing.ImageInfo {
	return ic.processor.GetImageInfo(img)
}

// Open loads the image at path and starts a session on it. Crop numbering
// continues after any crops already saved for the same stem.
func (ic *ImageCropper) Open(path string) (*session.Session, error) {
	img, err := ic.processor.LoadImage(path)
	if err != nil {
		return nil, err
	}
	return ic.OpenImage(img, processing.Stem(path))
}

// OpenImage starts a session on an already decoded image. A crop directory
// that cannot be scanned is reported as store.ErrOutputDir.
func (ic *ImageCropper) OpenImage(img image.Image, stem string) (*session.Session, error) {
	start, err := ic.writer.NextIndex(stem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan existing crops of %s: %w", stem, err)
	}
	ex := cropper.NewExtractor(ic.cropper, img, stem, ic.writer, start)
	return session.New(img, ex, ic.opts.ViewportWidth, ic.opts.ViewportHeight,
		session.WithZoomFactors(ic.opts.ZoomFactors))
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
