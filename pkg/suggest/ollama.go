package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/api"
)

// DefaultPrompt asks the model for the crop-worthy subject of the image
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3", "tag4", "tag5"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), x/y is the top-left corner.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most salient object).
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {"primary":{"label":"none","confidence":0.0,"box":{"x":0,"y":0,"w":0,"h":0}},"description":"","tags":[]}
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ModelConfig holds configuration for the vision-model suggesters
type ModelConfig struct {
	URL           string
	Model         string
	Prompt        string
	SendSize      int
	SendQuality   int
	MinConfidence float64
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Ollama asks a vision model served by Ollama where the subject is.
type Ollama struct {
	client *api.Client
	config ModelConfig
}

// analysis is the JSON answer requested by DefaultPrompt.
type analysis struct {
	Primary struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Box        Box     `json:"box"`
	} `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// NewOllama creates an Ollama suggester
func NewOllama(config ModelConfig) (*Ollama, error) {
	baseURL, err := config.prepare()
	if err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Ollama{client: api.NewClient(baseURL, httpClient), config: config}, nil
}

// prepare fills in defaults and returns the server URL reduced to scheme
// and host, so URLs like http://host:11434/api/chat work.
func (c *ModelConfig) prepare() (*url.URL, error) {
	if c.Model == "" {
		return nil, errors.New("model is required")
	}
	parsedURL, err := url.Parse(c.URL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", c.URL)
	}
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.SendSize <= 0 {
		c.SendSize = 1024
	}
	if c.SendQuality <= 0 || c.SendQuality > 100 {
		c.SendQuality = 90
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
	return &url.URL{Scheme: parsedURL.Scheme, Host: parsedURL.Host}, nil
}

// Name implements Suggester.
func (o *Ollama) Name() string { return "ollama" }

// Suggest implements Suggester.
func (o *Ollama) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	if img == nil || img.Bounds().Empty() {
		return Suggestion{}, ErrNoSubject
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.Timeout)
		defer cancel()
	}

	payload, err := encodeForModel(img, o.config.SendSize, o.config.SendQuality)
	if err != nil {
		return Suggestion{}, err
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model: o.config.Model,
		Messages: []api.Message{
			{
				Role:    "user",
				Content: o.config.Prompt,
				Images:  []api.ImageData{api.ImageData(payload)},
			},
		},
		Stream: &streamFalse,
	}

	var content strings.Builder
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return Suggestion{}, fmt.Errorf("ollama chat error: %w", err)
	}
	if content.Len() == 0 {
		return Suggestion{}, fmt.Errorf("%w: empty response from ollama", ErrNoSubject)
	}

	return toSuggestion(content.String(), o.config.MinConfidence)
}

// encodeForModel downscales img to fit size and encodes it as JPEG.
func encodeForModel(img image.Image, size, quality int) ([]byte, error) {
	small := imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image for the model: %w", err)
	}
	return buf.Bytes(), nil
}

// toSuggestion turns a model answer into a checked Suggestion.
func toSuggestion(raw string, minConfidence float64) (Suggestion, error) {
	result, err := parseAnalysis(raw)
	if err != nil {
		return Suggestion{}, err
	}
	return accept(Suggestion{
		Label:      result.Primary.Label,
		Confidence: result.Primary.Confidence,
		Box:        result.Primary.Box,
		Tags:       normalizeTags(result.Tags),
	}, minConfidence)
}

// parseAnalysis parses the JSON answer of the vision model
func parseAnalysis(raw string) (analysis, error) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return analysis{}, fmt.Errorf("%w: model returned non-JSON response", ErrNoSubject)
	}

	var result analysis
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return analysis{}, fmt.Errorf("%w: failed to parse model response: %v", ErrNoSubject, err)
	}
	return result, nil
}

var (
	reBlockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
