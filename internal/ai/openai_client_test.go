package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dfwthrift/contentpipe/internal/apperr"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`[{"index":0}]`, `[{"index":0}]`},
		{"```json\n[{\"index\":0}]\n```", `[{"index":0}]`},
		{"```\n[]\n```", `[]`},
		{"  ```json[1]```  ", `[1]`},
	}

	for _, tt := range tests {
		if got := StripCodeFence(tt.in); got != tt.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newTestOpenAIClient(url string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   "test-model",
		Timeout: 2 * time.Second,
	})
}

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	content, err := newTestOpenAIClient(srv.URL).Complete(context.Background(), []Message{{Role: "user", Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content != "hello" {
		t.Errorf("expected hello, got %q", content)
	}
	if auth != "Bearer test-key" {
		t.Errorf("unexpected Authorization header %q", auth)
	}
	if got.Model != "test-model" || len(got.Messages) != 1 {
		t.Errorf("unexpected request body: %+v", got)
	}
}

func TestCompleteNon2xxIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := newTestOpenAIClient(srv.URL).Complete(context.Background(), nil)

	var ue *apperr.UpstreamServiceError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamServiceError, got %v", err)
	}
	if ue.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", ue.StatusCode)
	}
}

func TestCompleteWithoutKeyFailsFast(t *testing.T) {
	c := NewOpenAIClient(OpenAIConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), nil)

	var ue *apperr.UpstreamServiceError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamServiceError, got %v", err)
	}
}
