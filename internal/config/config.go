package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Input    InputConfig    `json:"input"`
	Viewport ViewportConfig `json:"viewport"`
	Cropper  CropperConfig  `json:"cropper"`
	Output   OutputConfig   `json:"output"`
	Render   RenderConfig   `json:"render"`
	Suggest  SuggestConfig  `json:"suggest"`
}

// InputConfig describes where source images are found
type InputConfig struct {
	Dir        string   `json:"dir"`
	Extensions []string `json:"extensions"`
	Recursive  bool     `json:"recursive"`
	MaxPixels  int      `json:"max_pixels"`
}

// ViewportConfig holds the initial window size and wheel zoom factors
type ViewportConfig struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	ZoomIn  float64 `json:"zoom_in"`
	ZoomOut float64 `json:"zoom_out"`
}

// CropperConfig holds configuration for crop validation
type CropperConfig struct {
	MinSelection int `json:"min_selection"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir         string `json:"dir"`
	Compression string `json:"compression"`
}

// RenderConfig holds configuration for preview frames
type RenderConfig struct {
	Interpolation string `json:"interpolation"`
	ShowInfo      bool   `json:"show_info"`
	PreviewDir    string `json:"preview_dir"`
}

// SuggestConfig holds configuration for automatic crop suggestions
type SuggestConfig struct {
	Backend       string  `json:"backend"`
	URL           string  `json:"url"`
	Model         string  `json:"model"`
	SendSize      int     `json:"send_size"`
	SendQuality   int     `json:"send_quality"`
	MinConfidence float64 `json:"min_confidence"`
	TimeoutSec    int     `json:"timeout_sec"`
}

// Timeout returns the suggestion timeout as a duration
func (s SuggestConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Dir:        "source_images",
			Extensions: []string{"jpg", "jpeg", "png", "bmp", "tiff", "tif", "jfif", "webp"},
			Recursive:  false,
			MaxPixels:  0,
		},
		Viewport: ViewportConfig{
			Width:   1200,
			Height:  800,
			ZoomIn:  1.1,
			ZoomOut: 0.9,
		},
		Cropper: CropperConfig{
			MinSelection: 10,
		},
		Output: OutputConfig{
			Dir:         "output",
			Compression: "default",
		},
		Render: RenderConfig{
			Interpolation: "bilinear",
			ShowInfo:      true,
		},
		Suggest: SuggestConfig{
			Backend:       "none",
			URL:           "http://localhost:11434",
			Model:         "llava",
			SendSize:      1024,
			SendQuality:   90,
			MinConfidence: 0.3,
			TimeoutSec:    300,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from the
// file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Input.Extensions) == 0 {
		return fmt.Errorf("input.extensions cannot be empty")
	}

	if c.Input.MaxPixels < 0 {
		return fmt.Errorf("input.max_pixels cannot be negative")
	}

	if c.Viewport.Width < 1 || c.Viewport.Height < 1 {
		return fmt.Errorf("viewport.width and viewport.height must be positive")
	}

	if c.Viewport.ZoomIn <= 1 {
		return fmt.Errorf("viewport.zoom_in must be greater than 1")
	}

	if c.Viewport.ZoomOut <= 0 || c.Viewport.ZoomOut >= 1 {
		return fmt.Errorf("viewport.zoom_out must be between 0 and 1")
	}

	if c.Cropper.MinSelection < 0 {
		return fmt.Errorf("cropper.min_selection cannot be negative")
	}

	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir cannot be empty")
	}

	switch c.Suggest.Backend {
	case "", "none", "saliency":
	case "ollama", "llamacpp":
		if c.Suggest.URL == "" || c.Suggest.Model == "" {
			return fmt.Errorf("suggest.url and suggest.model are required for the %s backend", c.Suggest.Backend)
		}
	default:
		return fmt.Errorf("suggest.backend must be one of none, saliency, ollama, llamacpp")
	}

	if c.Suggest.MinConfidence < 0 || c.Suggest.MinConfidence > 1 {
		return fmt.Errorf("suggest.min_confidence must be between 0 and 1")
	}

	if c.Suggest.SendQuality < 1 || c.Suggest.SendQuality > 100 {
		return fmt.Errorf("suggest.send_quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-cropper", "config.json")
}
