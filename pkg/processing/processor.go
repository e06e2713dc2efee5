package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecodeFailure is returned when a source file cannot be decoded.
var ErrDecodeFailure = errors.New("decode failure")

// Processor decodes source images into opaque pixel buffers
type Processor struct {
	maxPixels int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// NewProcessorWithLimit creates a processor that rejects images with more
// than maxPixels pixels. Zero disables the limit.
func NewProcessorWithLimit(maxPixels int) *Processor {
	return &Processor{maxPixels: maxPixels}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// LoadImage reads and decodes an image file. The format is detected from the
// content, so files with unusual extensions (.jfif) decode like any other.
// The result always has bounds starting at (0,0) and an opaque alpha channel.
func (p *Processor) LoadImage(path string) (*image.NRGBA, error) {
	// imaging.Open covers every decoder registered with the image package
	if img, err := imaging.Open(path); err == nil {
		return p.finish(path, img)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, path, err)
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailure, path, err)
	}
	return p.finish(path, img)
}

// LoadImageFromReader decodes an image from an io.Reader
func (p *Processor) LoadImageFromReader(r io.Reader) (*image.NRGBA, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	img, err := p.decodeImageFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return p.finish("reader", img)
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	// Try standard image.Decode first
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

func (p *Processor) finish(name string, img image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: %s: empty image", ErrDecodeFailure, name)
	}
	if p.maxPixels > 0 && b.Dx()*b.Dy() > p.maxPixels {
		return nil, fmt.Errorf("%w: %s: %dx%d exceeds %d pixels", ErrDecodeFailure, name, b.Dx(), b.Dy(), p.maxPixels)
	}
	return Flatten(img), nil
}

// Flatten copies img into a new NRGBA buffer at the origin and drops the
// alpha channel, leaving three meaningful color channels.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// GetImageInfo returns basic information about an image
func (p *Processor) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	info := ImageInfo{
		Width:  width,
		Height: height,
		Area:   width * height,
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

// Stem returns the file name of path without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
