package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"

	"k8s.io/klog/v2"

	imagecropper "github.com/menta2k/image-cropper"
	"github.com/menta2k/image-cropper/internal/config"
	"github.com/menta2k/image-cropper/internal/utils"
	"github.com/menta2k/image-cropper/pkg/render"
	"github.com/menta2k/image-cropper/pkg/store"
	"github.com/menta2k/image-cropper/pkg/suggest"
	"github.com/menta2k/image-cropper/pkg/viewport"
)

var (
	configFile  = flag.String("config", "", "JSON config file (default: ~/.config/image-cropper/config.json if present)")
	inDir       = flag.String("in", "", "directory with source images")
	outDir      = flag.String("out", "", "output root; crops go to <out>/<stem>/<index>.png")
	eventsFile  = flag.String("events", "", "JSON-lines event script, - for stdin")
	suggestMode = flag.String("suggest", "", "automatic crop per image: none|saliency|ollama|llamacpp")
	previewDir  = flag.String("preview", "", "directory for snapshot frames")
	recursive   = flag.Bool("recursive", false, "also look for images in subdirectories")
	writeConfig = flag.String("write-config", "", "write the effective config to this file and exit")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	cfg, err := loadConfig()
	if err != nil {
		klog.Exitf("config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		klog.Exitf("invalid config: %v", err)
	}

	if *writeConfig != "" {
		if err := cfg.SaveToFile(*writeConfig); err != nil {
			klog.Exitf("write config: %v", err)
		}
		klog.Infof("wrote %s", *writeConfig)
		return
	}

	level, err := store.ParseCompression(cfg.Output.Compression)
	if err != nil {
		klog.Exitf("invalid config: %v", err)
	}
	renderer, err := render.NewWithConfig(render.Config{
		Interpolation: cfg.Render.Interpolation,
		ShowInfo:      cfg.Render.ShowInfo,
	})
	if err != nil {
		klog.Exitf("invalid config: %v", err)
	}

	ic, err := imagecropper.New(imagecropper.Options{
		OutputDir:      cfg.Output.Dir,
		ViewportWidth:  cfg.Viewport.Width,
		ViewportHeight: cfg.Viewport.Height,
		MinSelection:   cfg.Cropper.MinSelection,
		MaxPixels:      cfg.Input.MaxPixels,
		Compression:    level,
		ZoomFactors:    viewport.Factors{In: cfg.Viewport.ZoomIn, Out: cfg.Viewport.ZoomOut},
	})
	if err != nil {
		klog.Exitf("output directory %s: %v", cfg.Output.Dir, err)
	}

	suggester, err := newSuggester(cfg.Suggest)
	if err != nil {
		klog.Exitf("suggest: %v", err)
	}

	var events io.Reader
	switch *eventsFile {
	case "":
	case "-":
		events = os.Stdin
	default:
		f, err := os.Open(*eventsFile)
		if err != nil {
			klog.Exitf("events: %v", err)
		}
		defer f.Close()
		events = f
	}
	if events == nil && suggester == nil {
		klog.Exitf("nothing to do: pass -events or -suggest")
	}

	if !utils.DirExists(cfg.Input.Dir) {
		klog.Exitf("input directory %s does not exist", cfg.Input.Dir)
	}
	files, err := utils.ListImageFiles(cfg.Input.Dir, cfg.Input.Extensions, cfg.Input.Recursive)
	if err != nil {
		klog.Exitf("input: %v", err)
	}
	if len(files) == 0 {
		klog.Infof("no images found in %s", cfg.Input.Dir)
		return
	}
	klog.Infof("found %d images in %s, writing crops to %s", len(files), cfg.Input.Dir, ic.Writer().Root())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := &runner{
		cropper:    ic,
		renderer:   renderer,
		suggester:  suggester,
		events:     events,
		previewDir: cfg.Render.PreviewDir,
	}
	stats, err := r.run(ctx, files)
	klog.Infof("done: %d images, %d crops saved, %d rejected, %d failed, %d skipped",
		stats.Images, stats.Saved, stats.Rejected, stats.Failed, stats.Skipped)
	if err != nil {
		klog.Exitf("output directory %s: %v", cfg.Output.Dir, err)
	}
}

// loadConfig reads -config, or the default config path when it exists, or
// falls back to built-in defaults.
func loadConfig() (*config.Config, error) {
	if *configFile != "" {
		return config.LoadFromFile(*configFile)
	}
	if path := config.GetConfigPath(); utils.FileExists(path) {
		klog.V(1).Infof("using config %s", path)
		return config.LoadFromFile(path)
	}
	return config.Default(), nil
}

// applyFlags overrides config values with flags given on the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "in":
			cfg.Input.Dir = *inDir
		case "out":
			cfg.Output.Dir = *outDir
		case "suggest":
			cfg.Suggest.Backend = *suggestMode
		case "preview":
			cfg.Render.PreviewDir = *previewDir
		case "recursive":
			cfg.Input.Recursive = *recursive
		}
	})
}

func newSuggester(cfg config.SuggestConfig) (suggest.Suggester, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "saliency":
		sc := suggest.DefaultSaliencyConfig()
		sc.MinConfidence = cfg.MinConfidence
		return suggest.NewSaliencyWithConfig(sc), nil
	case "ollama":
		return suggest.NewOllama(modelConfig(cfg))
	case "llamacpp":
		return suggest.NewLlamaCpp(modelConfig(cfg))
	default:
		return nil, errors.New("unknown backend " + cfg.Backend)
	}
}

func modelConfig(cfg config.SuggestConfig) suggest.ModelConfig {
	return suggest.ModelConfig{
		URL:           cfg.URL,
		Model:         cfg.Model,
		SendSize:      cfg.SendSize,
		SendQuality:   cfg.SendQuality,
		MinConfidence: cfg.MinConfidence,
		Timeout:       cfg.Timeout(),
	}
}
