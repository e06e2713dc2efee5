package cropper

import (
	"errors"
	"fmt"
	"image"

	"github.com/menta2k/image-cropper/pkg/store"
)

// maxIndexSkips bounds how far Commit walks past indices taken on disk.
const maxIndexSkips = 1000

// Saver persists a crop image under a per-source stem.
type Saver interface {
	Dir(stem string) string
	Save(img image.Image, stem string, index int) (store.Saved, error)
}

// Job is a validated crop waiting to be extracted and saved.
type Job struct {
	Source    image.Image
	Stem      string
	Rect      image.Rectangle
	OutputDir string
	Index     int
}

// Result describes a saved crop.
type Result struct {
	Path    string          `json:"path"`
	Size    int64           `json:"size"`
	Index   int             `json:"index"`
	Rect    image.Rectangle `json:"rect"`
	Encoder string          `json:"encoder"`
}

// Extractor crops one source image and numbers its crops sequentially.
type Extractor struct {
	cropper *Cropper
	source  image.Image
	stem    string
	saver   Saver
	next    int
}

// NewExtractor returns an Extractor for source whose first crop gets index
// start.
func NewExtractor(c *Cropper, source image.Image, stem string, saver Saver, start int) *Extractor {
	if c == nil {
		c = New()
	}
	if start < 0 {
		start = 0
	}
	return &Extractor{cropper: c, source: source, stem: stem, saver: saver, next: start}
}

// Index returns the index the next successful save will use.
func (e *Extractor) Index() int {
	return e.next
}

// Stem returns the name of the source image without extension.
func (e *Extractor) Stem() string {
	return e.stem
}

// Prepare validates sel and builds the job for it without touching disk.
func (e *Extractor) Prepare(sel Selection) (Job, error) {
	b := e.source.Bounds()
	rect, err := e.cropper.Plan(b.Dx(), b.Dy(), sel)
	if err != nil {
		return Job{}, err
	}
	return Job{
		Source:    e.source,
		Stem:      e.stem,
		Rect:      rect,
		OutputDir: e.saver.Dir(e.stem),
		Index:     e.next,
	}, nil
}

// Commit extracts and saves sel. The index only advances after the saver
// reports a verified file, so a failed Commit leaves it where it was, even
// after skipping indices that were already taken.
func (e *Extractor) Commit(sel Selection) (Result, error) {
	job, err := e.Prepare(sel)
	if err != nil {
		return Result{}, err
	}

	img, err := Extract(job.Source, job.Rect)
	if err != nil {
		return Result{}, err
	}

	saved, err := e.saver.Save(img, job.Stem, job.Index)
	for tries := 0; errors.Is(err, store.ErrExists) && tries < maxIndexSkips; tries++ {
		// someone else took this index; move on to the next unused one
		job.Index++
		saved, err = e.saver.Save(img, job.Stem, job.Index)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to save crop %d of %s: %w", job.Index, job.Stem, err)
	}

	e.next = job.Index + 1
	return Result{
		Path:    saved.Path,
		Size:    saved.Size,
		Index:   job.Index,
		Rect:    job.Rect,
		Encoder: saved.Encoder,
	}, nil
}
