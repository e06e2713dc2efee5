package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/disintegration/imaging"
	"k8s.io/klog/v2"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/render"
	"github.com/menta2k/image-cropper/pkg/session"
	"github.com/menta2k/image-cropper/pkg/store"
	"github.com/menta2k/image-cropper/pkg/suggest"
)

// stats counts what happened during a run.
type stats struct {
	Images   int
	Saved    int
	Rejected int
	Failed   int
	Skipped  int
}

// runner feeds every source image through a session, driven by the
// suggester and the event script.
type runner struct {
	cropper    *imagecropper.ImageCropper
	renderer   *render.Renderer
	suggester  suggest.Suggester
	events     io.Reader
	previewDir string

	script    *session.Script
	snapshots int
	stats     stats
	fatal     error
}

// run processes files in order. It returns an error only when the output
// tree cannot be written; every other problem is logged and counted.
func (r *runner) run(ctx context.Context, files []string) (stats, error) {
	if r.events != nil {
		r.script = session.NewScript(r.events)
	}

	for i, path := range files {
		if ctx.Err() != nil {
			klog.Warningf("interrupted, stopping before %s", path)
			break
		}
		if r.script == nil && r.suggester == nil {
			break
		}

		s, err := r.cropper.Open(path)
		if errors.Is(err, store.ErrOutputDir) {
			r.fatal = err
			break
		}
		if err != nil {
			klog.Warningf("skipping %s: %v", path, err)
			r.stats.Skipped++
			continue
		}
		r.stats.Images++
		info := r.cropper.ImageInfo(s.Source())
		klog.Infof("[%d/%d] %s: %dx%d (%.2f:1) at zoom %.2f, next crop %d",
			i+1, len(files), filepath.Base(path), info.Width, info.Height, info.AspectRatio, s.View().Zoom, s.NextIndex())

		if r.suggester != nil {
			r.suggest(ctx, s)
			if r.fatal != nil {
				break
			}
		}
		if r.script != nil && r.replay(s) {
			break
		}
	}
	return r.stats, r.fatal
}

func (r *runner) suggest(ctx context.Context, s *session.Session) {
	sug, err := r.suggester.Suggest(ctx, s.Source())
	if err != nil {
		if errors.Is(err, suggest.ErrNoSubject) {
			klog.Infof("%s: %s found no subject", s.Stem(), r.suggester.Name())
		} else {
			klog.Warningf("%s: %s suggestion failed: %v", s.Stem(), r.suggester.Name(), err)
		}
		return
	}
	v := s.View()
	sel := sug.Selection(v.ImageWidth, v.ImageHeight)
	klog.V(1).Infof("%s: %s suggests %q (%.2f) at %v", s.Stem(), r.suggester.Name(), sug.Label, sug.Confidence, sel.Normalize())
	r.report(s, s.Commit(sel))
}

// replay handles script events until the script asks for the next image.
// It returns true when the run should end.
func (r *runner) replay(s *session.Session) bool {
	for {
		ev, err := r.script.Next()
		if errors.Is(err, session.ErrBadEvent) {
			klog.Warningf("events: %v", err)
			continue
		}
		if err != nil {
			if err != io.EOF {
				klog.Warningf("events: %v", err)
			}
			r.script = nil
			return r.suggester == nil
		}
		klog.V(2).Infof("event %v", ev)

		out := s.Handle(ev)
		switch out.Action {
		case session.Advance:
			return false
		case session.Quit:
			return true
		case session.Snapshot:
			r.snapshot(s)
		default:
			r.report(s, out)
			if r.fatal != nil {
				return true
			}
		}
	}
}

func (r *runner) report(s *session.Session, out session.Outcome) {
	switch out.Action {
	case session.Saved:
		r.stats.Saved++
		klog.Infof("saved %s (%dx%d, %s)", out.Crop.Path, out.Crop.Rect.Dx(), out.Crop.Rect.Dy(), utils.FormatFileSize(out.Crop.Size))
	case session.Rejected:
		r.stats.Rejected++
		klog.V(1).Infof("%s: selection ignored: %v", s.Stem(), out.Err)
	case session.Failed:
		r.stats.Failed++
		klog.Warningf("%s: %v", s.Stem(), out.Err)
	case session.Aborted:
		klog.V(1).Infof("%s: selection aborted", s.Stem())
	case session.Fatal:
		r.fatal = out.Err
	default:
		if out.Err != nil {
			klog.Warningf("%s: %v", s.Stem(), out.Err)
		}
	}
}

// snapshot renders what the viewport currently shows into the preview dir.
func (r *runner) snapshot(s *session.Session) {
	if r.previewDir == "" {
		klog.V(1).Infof("%s: snapshot requested but no preview directory set", s.Stem())
		return
	}
	if err := utils.EnsureDir(r.previewDir); err != nil {
		klog.Warningf("preview: %v", err)
		return
	}
	frame := r.renderer.Frame(s.Source(), s.View(), render.Overlay{Selection: s.Selection(), Crops: s.Saved()})
	path := filepath.Join(r.previewDir, fmt.Sprintf("%s_%03d.png", s.Stem(), r.snapshots))
	if err := imaging.Save(frame, path); err != nil {
		klog.Warningf("preview: %v", err)
		return
	}
	r.snapshots++
	klog.Infof("wrote preview %s", path)
}
