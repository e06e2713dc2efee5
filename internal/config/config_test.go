package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if c.Viewport.Width != 1200 || c.Viewport.Height != 800 {
		t.Errorf("Expected 1200x800 viewport, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	}
	if c.Cropper.MinSelection != 10 {
		t.Errorf("Expected min selection 10, got %d", c.Cropper.MinSelection)
	}
	if c.Suggest.Timeout() != 300*time.Second {
		t.Errorf("Expected 300s timeout, got %v", c.Suggest.Timeout())
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	c := Default()
	c.Output.Dir = "crops"
	c.Suggest.Backend = "saliency"

	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Output.Dir != "crops" || loaded.Suggest.Backend != "saliency" {
		t.Errorf("Expected saved values back, got %+v", loaded)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"viewport":{"width":640,"height":480}}`), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if c.Viewport.Width != 640 {
		t.Errorf("Expected width 640, got %d", c.Viewport.Width)
	}
	if c.Viewport.ZoomIn != 1.1 || c.Cropper.MinSelection != 10 {
		t.Errorf("Expected defaults for missing fields, got %+v", c)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFromFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := LoadFromFile(bad); err == nil {
		t.Error("Expected error for malformed file")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no extensions":      func(c *Config) { c.Input.Extensions = nil },
		"zero viewport":      func(c *Config) { c.Viewport.Width = 0 },
		"zoom in below one":  func(c *Config) { c.Viewport.ZoomIn = 0.9 },
		"zoom out above one": func(c *Config) { c.Viewport.ZoomOut = 1.2 },
		"negative minimum":   func(c *Config) { c.Cropper.MinSelection = -1 },
		"empty output":       func(c *Config) { c.Output.Dir = " " },
		"unknown backend":    func(c *Config) { c.Suggest.Backend = "magic" },
		"ollama no model":    func(c *Config) { c.Suggest.Backend = "ollama"; c.Suggest.Model = "" },
		"bad confidence":     func(c *Config) { c.Suggest.MinConfidence = 2 },
		"bad quality":        func(c *Config) { c.Suggest.SendQuality = 0 },
	}
	for name, mutate := range cases {
		c := Default()
		mutate(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestGetConfigPath(t *testing.T) {
	if p := GetConfigPath(); !strings.HasSuffix(p, "config.json") {
		t.Errorf("Expected a config.json path, got %s", p)
	}
}
