package processing

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
)

// createTestImage creates a gradient test image with a translucent corner
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	img.SetNRGBA(0, 0, color.NRGBA{200, 100, 50, 10})
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoadImageNonStandardExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.jfif")
	writePNG(t, path, createTestImage(40, 30))

	img, err := NewProcessor().LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 40, 30) {
		t.Errorf("Expected 40x30 at origin, got %v", img.Bounds())
	}
}

func TestLoadImageDropsAlpha(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alpha.png")
	writePNG(t, path, createTestImage(8, 8))

	img, err := NewProcessor().LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	c := img.NRGBAAt(0, 0)
	if c.A != 255 {
		t.Errorf("Expected opaque pixel, got alpha %d", c.A)
	}
	if c.R != 200 || c.G != 100 || c.B != 50 {
		t.Errorf("Expected color (200,100,50), got %v", c)
	}
}

func TestLoadImageBMP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.bmp")
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, Flatten(createTestImage(16, 12))); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := NewProcessor().LoadImage(path)
	if err != nil {
		t.Fatalf("LoadImage failed: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 12 {
		t.Errorf("Expected 16x12, got %v", img.Bounds())
	}
}

func TestLoadImageDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.jpg")
	if err := os.WriteFile(bad, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProcessor()
	if _, err := p.LoadImage(bad); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure, got %v", err)
	}
	if _, err := p.LoadImage(filepath.Join(dir, "missing.png")); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure for missing file, got %v", err)
	}
}

func TestLoadImagePixelLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	writePNG(t, path, createTestImage(100, 100))

	if _, err := NewProcessorWithLimit(5000).LoadImage(path); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("Expected ErrDecodeFailure over pixel limit, got %v", err)
	}
	if _, err := NewProcessorWithLimit(10000).LoadImage(path); err != nil {
		t.Errorf("Expected image at the limit to load, got %v", err)
	}
}

func TestLoadImageFromReader(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(20, 10)); err != nil {
		t.Fatal(err)
	}
	img, err := NewProcessor().LoadImageFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadImageFromReader failed: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("Expected width 20, got %d", img.Bounds().Dx())
	}
}

func TestFlattenMovesToOrigin(t *testing.T) {
	base := createTestImage(50, 50)
	sub := base.SubImage(image.Rect(10, 20, 30, 50))

	out := Flatten(sub)
	if out.Bounds() != image.Rect(0, 0, 20, 30) {
		t.Fatalf("Expected (0,0)-(20,30), got %v", out.Bounds())
	}
	if out.NRGBAAt(0, 0) != base.NRGBAAt(10, 20) {
		t.Errorf("Expected %v, got %v", base.NRGBAAt(10, 20), out.NRGBAAt(0, 0))
	}
}

func TestGetImageInfo(t *testing.T) {
	info := NewProcessor().GetImageInfo(createTestImage(400, 300))

	if info.Width != 400 || info.Height != 300 {
		t.Errorf("Expected 400x300, got %dx%d", info.Width, info.Height)
	}
	if info.AspectRatio != float64(400)/float64(300) {
		t.Errorf("Expected aspect ratio %f, got %f", float64(400)/float64(300), info.AspectRatio)
	}
	if info.Area != 120000 {
		t.Errorf("Expected area 120000, got %d", info.Area)
	}
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"/a/b/photo.jpg":  "photo",
		"scan.v2.jfif":    "scan.v2",
		"noext":           "noext",
		"dir/.hidden.png": ".hidden",
	}
	for in, want := range cases {
		if got := Stem(in); got != want {
			t.Errorf("Stem(%q) = %q, want %q", in, got, want)
		}
	}
}

func BenchmarkFlatten(b *testing.B) {
	img := createTestImage(1920, 1080)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Flatten(img)
	}
}
