package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeLlamaCpp(t *testing.T, content any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		parts, _ := req.Messages[0].Content.([]any)
		if len(parts) != 2 || !strings.Contains(mustJSON(parts[1]), "data:image/jpeg;base64,") {
			http.Error(w, "expected text and image parts", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func TestLlamaCppSuggest(t *testing.T) {
	answer := `{"primary":{"label":"boat","confidence":0.9,"box":{"x":0.5,"y":0.5,"w":0.25,"h":0.25}},"tags":["Boat"]}`
	srv := fakeLlamaCpp(t, answer)
	l, err := NewLlamaCpp(ModelConfig{URL: srv.URL, Model: "minicpm-v", SendSize: 32})
	if err != nil {
		t.Fatal(err)
	}

	s, err := l.Suggest(context.Background(), createTestImage(80, 40, image.Rect(40, 20, 60, 30)))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if s.Label != "boat" || len(s.Tags) != 1 || s.Tags[0] != "boat" {
		t.Errorf("Unexpected suggestion %+v", s)
	}
	if r := s.Selection(80, 40).Normalize(); r != image.Rect(40, 20, 60, 30) {
		t.Errorf("Expected (40,20)-(60,30), got %v", r)
	}
}

func TestLlamaCppContentParts(t *testing.T) {
	parts := []any{map[string]any{"type": "text", "text": `{"primary":{"label":"x","confidence":1,"box":{"x":0,"y":0,"w":1,"h":1}}}`}}
	srv := fakeLlamaCpp(t, parts)
	l, _ := NewLlamaCpp(ModelConfig{URL: srv.URL, Model: "m"})

	s, err := l.Suggest(context.Background(), createTestImage(20, 20, image.Rect(0, 0, 5, 5)))
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if s.Box != (Box{X: 0, Y: 0, W: 1, H: 1}) {
		t.Errorf("Unexpected box %+v", s.Box)
	}
}

func TestLlamaCppServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	l, _ := NewLlamaCpp(ModelConfig{URL: srv.URL, Model: "m"})

	_, err := l.Suggest(context.Background(), createTestImage(20, 20, image.Rect(0, 0, 5, 5)))
	if err == nil || errors.Is(err, ErrNoSubject) {
		t.Errorf("Expected transport error, got %v", err)
	}
}

func TestMessageText(t *testing.T) {
	if got := messageText("plain"); got != "plain" {
		t.Errorf("Expected plain, got %q", got)
	}
	if got := messageText(42); got != "" {
		t.Errorf("Expected empty text, got %q", got)
	}
}
