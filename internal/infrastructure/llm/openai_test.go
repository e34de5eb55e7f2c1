package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NewsDigest/internal/config"
	"NewsDigest/internal/ports"
)

func TestChatClientCompleteWithSchema(t *testing.T) {
	t.Parallel()

	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  {\"ok\":true}  "},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewChatClient(config.OpenAIConfig{BaseURL: server.URL + "/v1/", Model: "gpt-test", APIKey: "sk-test"})

	out, err := client.Complete(context.Background(), ports.CompletionRequest{
		Instructions: "be terse",
		Input:        "hello",
		Schema:       &ports.OutputSchema{Name: "ok", Schema: map[string]any{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if out != `{"ok":true}` {
		t.Fatalf("unexpected output %q", out)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "be terse" {
		t.Fatalf("unexpected system message: %+v", got.Messages[0])
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" || got.ResponseFormat.JSONSchema.Name != "ok" {
		t.Fatalf("expected json_schema response format, got %+v", got.ResponseFormat)
	}
}

func TestChatClientCompleteErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewChatClient(config.OpenAIConfig{BaseURL: server.URL, Model: "m", APIKey: "k"})

	_, err := client.Complete(context.Background(), ports.CompletionRequest{Input: "x"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
}

func TestChatClientMisconfigured(t *testing.T) {
	t.Parallel()

	client := NewChatClient(config.OpenAIConfig{BaseURL: "http://localhost", Model: "m"})
	if _, err := client.Complete(context.Background(), ports.CompletionRequest{Input: "x"}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestEmbeddingClientOrdersByIndex(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "text-embedding-3-large" || len(req.Input) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer server.Close()

	client := NewEmbeddingClient(config.OpenAIConfig{BaseURL: server.URL, EmbeddingModel: "text-embedding-3-large", APIKey: "k"})

	vectors, err := client.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed returned error: %v", err)
	}
	if len(vectors) != 2 || vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("unexpected vectors %v", vectors)
	}
}

func TestEmbeddingClientCountMismatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer server.Close()

	client := NewEmbeddingClient(config.OpenAIConfig{BaseURL: server.URL, EmbeddingModel: "m"})
	if _, err := client.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected mismatch error")
	}
}
