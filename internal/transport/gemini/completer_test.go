package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

func newTestCompleter(t *testing.T, url string) *Completer {
	t.Helper()
	c, err := NewCompleter(context.Background(), &Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "gemini-2.5-flash",
		Provider: "gemini",
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewCompleter: %v", err)
	}
	return c
}

func generateResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"role":  "model",
				"parts": []map[string]any{{"text": text}},
			},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     90,
			"candidatesTokenCount": 14,
			"totalTokenCount":      104,
		},
	}
}

func TestCompleter_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generateResponse(`{"cuisine":"日式"}`))
	}))
	defer server.Close()

	c := newTestCompleter(t, server.URL)
	res, err := c.Complete(context.Background(), domain.CompletionRequest{
		System: "extract criteria",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Text: "我餓了"},
			{Role: domain.RoleAssistant, Text: "想吃什麼？"},
			{Role: domain.RoleUser, Text: "日式"},
		},
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if res.Text != `{"cuisine":"日式"}` {
		t.Errorf("text = %q", res.Text)
	}
	if res.PromptTokens != 90 || res.CompletionTokens != 14 {
		t.Errorf("usage = %d/%d, expected 90/14", res.PromptTokens, res.CompletionTokens)
	}

	contents, _ := body["contents"].([]any)
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	second, _ := contents[1].(map[string]any)
	if second["role"] != "model" {
		t.Errorf("assistant turn role = %v, expected model", second["role"])
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Error("system instruction missing")
	}
}

func TestCompleter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrAIServiceUnavailable},
		{"server error", http.StatusServiceUnavailable, domain.ErrAIServiceUnavailable},
		{"bad request", http.StatusBadRequest, domain.ErrAIServiceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    tt.status,
						"message": "failed",
						"status":  http.StatusText(tt.status),
					},
				})
			}))
			defer server.Close()

			_, err := newTestCompleter(t, server.URL).Complete(context.Background(), domain.CompletionRequest{
				Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}},
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompleter_EmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer server.Close()

	_, err := newTestCompleter(t, server.URL).Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Text: "hi"}},
	})
	if !errors.Is(err, domain.ErrAIServiceError) {
		t.Fatalf("expected ErrAIServiceError, got %v", err)
	}
}
