package suggest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
)

// LlamaCpp asks a vision model behind an OpenAI-compatible chat endpoint,
// such as llama.cpp's server, where the subject is.
type LlamaCpp struct {
	baseURL    string
	httpClient *http.Client
	config     ModelConfig
}

// OpenAI-compatible message format
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewLlamaCpp creates a suggester for an OpenAI-compatible server
func NewLlamaCpp(config ModelConfig) (*LlamaCpp, error) {
	baseURL, err := config.prepare()
	if err != nil {
		return nil, err
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &LlamaCpp{baseURL: baseURL.String(), httpClient: httpClient, config: config}, nil
}

// Name implements Suggester.
func (l *LlamaCpp) Name() string { return "llamacpp" }

// Suggest implements Suggester.
func (l *LlamaCpp) Suggest(ctx context.Context, img image.Image) (Suggestion, error) {
	if img == nil || img.Bounds().Empty() {
		return Suggestion{}, ErrNoSubject
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.Timeout)
		defer cancel()
	}

	payload, err := encodeForModel(img, l.config.SendSize, l.config.SendQuality)
	if err != nil {
		return Suggestion{}, err
	}

	req := chatCompletionRequest{
		Model: l.config.Model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: l.config.Prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)}},
				},
			},
		},
		Temperature: 0.7,
		MaxTokens:   4096,
		TopP:        0.8,
	}

	body, err := l.sendRequest(ctx, "/v1/chat/completions", req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("llama.cpp request failed: %w", err)
	}

	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Suggestion{}, fmt.Errorf("failed to parse llama.cpp response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Suggestion{}, fmt.Errorf("%w: no choices in response", ErrNoSubject)
	}

	text := messageText(resp.Choices[0].Message.Content)
	if text == "" {
		return Suggestion{}, fmt.Errorf("%w: empty response from llama.cpp server", ErrNoSubject)
	}
	return toSuggestion(text, l.config.MinConfidence)
}

// messageText extracts the text of a message whose content is either a
// plain string or a list of parts.
func messageText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			if part, ok := item.(map[string]any); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func (l *LlamaCpp) sendRequest(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
