package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterLLMMetrics()
	os.Exit(m.Run())
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func chatResponse(content string, prompt, completion int) map[string]any {
	return map[string]any{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     prompt,
			"completion_tokens": completion,
			"total_tokens":      prompt + completion,
		},
	}
}

func newTestCompleter(url string) *Completer {
	return NewCompleter(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "test-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestCompleter_Complete(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(`{"cuisine":"日式"}`, 120, 18))
	}))
	defer server.Close()

	c := newTestCompleter(server.URL)
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
	if res.PromptTokens != 120 || res.CompletionTokens != 18 {
		t.Errorf("usage = %d/%d, expected 120/18", res.PromptTokens, res.CompletionTokens)
	}

	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(got.Messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d", len(wantRoles), len(got.Messages))
	}
	for i, role := range wantRoles {
		if got.Messages[i].Role != role {
			t.Errorf("message %d role = %s, expected %s", i, got.Messages[i].Role, role)
		}
	}
	if got.Model != "test-model" || got.MaxTokens != 300 {
		t.Errorf("request model/max_tokens = %s/%d", got.Model, got.MaxTokens)
	}
}

func TestCompleter_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse("", 5, 0)
		resp["choices"] = []map[string]any{}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	_, err := newTestCompleter(server.URL).Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrAIServiceError) {
		t.Fatalf("expected ErrAIServiceError, got %v", err)
	}
}

func TestCompleter_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"error": map[string]any{"message": "rate limit exceeded", "type": "rate_limit_error"}},
			want:   domain.ErrAIServiceUnavailable,
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   map[string]any{"detail": "upstream down"},
			want:   domain.ErrAIServiceUnavailable,
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   map[string]any{"error": map[string]any{"message": "unknown model", "type": "invalid_request_error"}},
			want:   domain.ErrAIServiceError,
		},
		{
			name:   "nebius detail",
			status: http.StatusUnprocessableEntity,
			body:   map[string]any{"detail": "max_tokens too large"},
			want:   domain.ErrAIServiceError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			_, err := newTestCompleter(server.URL).Complete(context.Background(), domain.CompletionRequest{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompleter_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := newTestCompleter(server.URL).Complete(ctx, domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrAIServiceUnavailable) {
		t.Fatalf("expected ErrAIServiceUnavailable, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", err)
	}
}

func TestCompleter_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestCompleter(url).Complete(context.Background(), domain.CompletionRequest{})
	if !errors.Is(err, domain.ErrAIServiceUnavailable) {
		t.Fatalf("expected ErrAIServiceUnavailable, got %v", err)
	}
}

func TestCompleter_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": []any{}})
	}))
	defer server.Close()

	if err := newTestCompleter(server.URL).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}
}

func TestCompleter_HealthCheckError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	if err := newTestCompleter(server.URL).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for 401")
	}
}
