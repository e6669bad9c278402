package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaGenerator_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected stream=false")
		}
		if req.Model != "llama3.1:8b" {
			t.Errorf("Expected model llama3.1:8b, got %s", req.Model)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1:8b",
			Response:        "<think>hmm</think>Two sentences.",
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       5,
		})
	}))
	defer server.Close()

	gen, err := NewOllamaGenerator(Config{Model: "llama3.1:8b", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	resp, err := gen.Generate(context.Background(), Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != "<think>hmm</think>Two sentences." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 15 {
		t.Errorf("Expected 15 tokens, got %d", resp.TokensUsed)
	}
}

func TestOllamaGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "busy"}`))
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(Config{Model: "m", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := gen.Generate(context.Background(), Request{Prompt: "x"})
	if !IsRateLimited(err) {
		t.Fatalf("Expected rate limit error, got %v", err)
	}
}

func TestOllamaGenerator_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "model not loaded"}`))
	}))
	defer server.Close()

	gen, _ := NewOllamaGenerator(Config{Model: "m", BaseURL: server.URL, Timeout: 5 * time.Second})

	_, err := gen.Generate(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if IsRateLimited(err) {
		t.Error("500 must not be reported as rate limiting")
	}
}

func TestNewOllamaGenerator_RequiresModel(t *testing.T) {
	if _, err := NewOllamaGenerator(Config{}); err == nil {
		t.Fatal("Expected error for missing model")
	}
}
