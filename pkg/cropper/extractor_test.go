package cropper

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/image-cropper/pkg/store"
)

// flakySaver fails the calls listed in failOn and delegates the rest
type flakySaver struct {
	*store.Writer
	calls  int
	failOn map[int]bool
}

func (f *flakySaver) Save(img image.Image, stem string, index int) (store.Saved, error) {
	f.calls++
	if f.failOn[f.calls] {
		return store.Saved{}, store.ErrEncodeFailure
	}
	return f.Writer.Save(img, stem, index)
}

func newWriter(t *testing.T) *store.Writer {
	t.Helper()
	w, err := store.NewWriter(t.TempDir(), png.DefaultCompression)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}
	return w
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestCommitSequentialIndex(t *testing.T) {
	w := newWriter(t)
	ex := NewExtractor(New(), createTestImage(200, 100), "photo", w, 0)

	first, err := ex.Commit(Selection{Start: image.Pt(0, 0), End: image.Pt(50, 40)})
	if err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	second, err := ex.Commit(Selection{Start: image.Pt(60, 10), End: image.Pt(120, 90)})
	if err != nil {
		t.Fatalf("second Commit failed: %v", err)
	}

	if filepath.Base(first.Path) != "0.png" || filepath.Base(second.Path) != "1.png" {
		t.Errorf("Expected 0.png and 1.png, got %s and %s", first.Path, second.Path)
	}
	if filepath.Dir(first.Path) != w.Dir("photo") {
		t.Errorf("Expected crops under %s, got %s", w.Dir("photo"), first.Path)
	}
	if ex.Index() != 2 {
		t.Errorf("Expected next index 2, got %d", ex.Index())
	}
	if first.Size <= 0 {
		t.Errorf("Expected positive size, got %d", first.Size)
	}
}

func TestCommitRoundTripDimensions(t *testing.T) {
	w := newWriter(t)
	ex := NewExtractor(New(), createTestImage(120, 90), "photo", w, 0)

	res, err := ex.Commit(Selection{Start: image.Pt(100, 70), End: image.Pt(300, 20)})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.Rect != image.Rect(100, 20, 120, 70) {
		t.Fatalf("Expected clamped rect (100,20)-(120,70), got %v", res.Rect)
	}

	back := decodePNG(t, res.Path)
	if back.Bounds().Dx() != 20 || back.Bounds().Dy() != 50 {
		t.Errorf("Expected 20x50, got %dx%d", back.Bounds().Dx(), back.Bounds().Dy())
	}
}

func TestCommitFailureKeepsIndex(t *testing.T) {
	saver := &flakySaver{Writer: newWriter(t), failOn: map[int]bool{2: true}}
	ex := NewExtractor(New(), createTestImage(100, 100), "photo", saver, 0)
	sel := Selection{Start: image.Pt(0, 0), End: image.Pt(30, 30)}

	if _, err := ex.Commit(sel); err != nil {
		t.Fatalf("first Commit failed: %v", err)
	}
	if _, err := ex.Commit(sel); !errors.Is(err, store.ErrEncodeFailure) {
		t.Fatalf("Expected ErrEncodeFailure, got %v", err)
	}
	if ex.Index() != 1 {
		t.Errorf("Expected failed save to leave index at 1, got %d", ex.Index())
	}

	res, err := ex.Commit(sel)
	if err != nil {
		t.Fatalf("third Commit failed: %v", err)
	}
	if filepath.Base(res.Path) != "1.png" {
		t.Errorf("Expected 1.png after failed save, got %s", res.Path)
	}
}

func TestCommitRejectionsWriteNothing(t *testing.T) {
	w := newWriter(t)
	ex := NewExtractor(New(), createTestImage(100, 100), "photo", w, 0)

	if _, err := ex.Commit(Selection{Start: image.Pt(0, 0), End: image.Pt(9, 50)}); !errors.Is(err, ErrSelectionTooSmall) {
		t.Errorf("Expected ErrSelectionTooSmall, got %v", err)
	}
	if _, err := ex.Commit(Selection{Start: image.Pt(-100, -100), End: image.Pt(-50, -50)}); !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("Expected ErrEmptyRegion, got %v", err)
	}
	if ex.Index() != 0 {
		t.Errorf("Expected index 0, got %d", ex.Index())
	}
	if _, err := os.Stat(w.Dir("photo")); !os.IsNotExist(err) {
		t.Errorf("Expected no crop directory, stat err=%v", err)
	}
}

func TestCommitSkipsExistingFiles(t *testing.T) {
	w := newWriter(t)
	if err := os.MkdirAll(w.Dir("photo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(w.Path("photo", 0), []byte("taken"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := NewExtractor(New(), createTestImage(100, 100), "photo", w, 0)
	res, err := ex.Commit(Selection{Start: image.Pt(0, 0), End: image.Pt(20, 20)})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.Index != 1 || filepath.Base(res.Path) != "1.png" {
		t.Errorf("Expected index 1, got %d (%s)", res.Index, res.Path)
	}
	if data, _ := os.ReadFile(w.Path("photo", 0)); string(data) != "taken" {
		t.Error("Existing crop was overwritten")
	}
}

func TestPrepare(t *testing.T) {
	w := newWriter(t)
	ex := NewExtractor(nil, createTestImage(100, 100), "photo", w, 4)

	job, err := ex.Prepare(Selection{Start: image.Pt(10, 10), End: image.Pt(40, 30)})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if job.Index != 4 || job.Stem != "photo" || job.OutputDir != w.Dir("photo") {
		t.Errorf("Unexpected job %+v", job)
	}
	if job.Rect != image.Rect(10, 10, 40, 30) {
		t.Errorf("Expected rect (10,10)-(40,30), got %v", job.Rect)
	}
}

// takenSaver reports every index as already stored
type takenSaver struct {
	*store.Writer
	calls int
}

func (f *takenSaver) Save(img image.Image, stem string, index int) (store.Saved, error) {
	f.calls++
	return store.Saved{}, store.ErrExists
}

func TestCommitExhaustedSkipsKeepIndex(t *testing.T) {
	saver := &takenSaver{Writer: newWriter(t)}
	ex := NewExtractor(New(), createTestImage(100, 100), "photo", saver, 3)

	_, err := ex.Commit(Selection{Start: image.Pt(0, 0), End: image.Pt(30, 30)})
	if !errors.Is(err, store.ErrExists) {
		t.Fatalf("Expected ErrExists, got %v", err)
	}
	if saver.calls != maxIndexSkips+1 {
		t.Errorf("Expected %d save attempts, got %d", maxIndexSkips+1, saver.calls)
	}
	if ex.Index() != 3 {
		t.Errorf("Expected failed Commit to leave index at 3, got %d", ex.Index())
	}
}
