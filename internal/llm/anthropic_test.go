package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnthropicGenerator_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %s", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Error("Expected anthropic-version header")
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.MaxTokens != 1024 {
			t.Errorf("Expected max_tokens 1024, got %d", req.MaxTokens)
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Content) != 2 {
			t.Errorf("Expected one message with image and text, got %+v", req.Messages)
		} else if req.Messages[0].Content[0].Source == nil || req.Messages[0].Content[0].Source.MediaType != "image/png" {
			t.Errorf("Expected image block first, got %+v", req.Messages[0].Content[0])
		}

		resp := anthropicResponse{Model: "claude-3-5-haiku-latest"}
		resp.Content = append(resp.Content, struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: "text", Text: "Park at the station."})
		resp.Usage.InputTokens = 50
		resp.Usage.OutputTokens = 20
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	gen, err := NewAnthropicGenerator(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	resp, err := gen.Generate(context.Background(), Request{
		Prompt:   "how to get there",
		Image:    []byte{0x89, 0x50},
		MimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "Park at the station." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 70 {
		t.Errorf("Expected 70 tokens, got %d", resp.TokensUsed)
	}
}

func TestAnthropicGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer server.Close()

	gen, _ := NewAnthropicGenerator(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := gen.Generate(context.Background(), Request{Prompt: "x"})
	if !IsRateLimited(err) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
	if got := err.Error(); got != "anthropic: API error (429): rate_limit_error - slow down" {
		t.Errorf("Unexpected error message: %s", got)
	}
}

func TestAnthropicGenerator_Generate_NoText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"content": [], "model": "m"}`))
	}))
	defer server.Close()

	gen, _ := NewAnthropicGenerator(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})

	if _, err := gen.Generate(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}

func TestNewAnthropicGenerator_MissingAPIKey(t *testing.T) {
	if _, err := NewAnthropicGenerator(Config{}); err == nil {
		t.Fatal("Expected error for missing API key")
	}
}
