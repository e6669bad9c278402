// Package llm turns merged POI evidence into guide text through a pluggable
// text generation backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Generator is a text generation backend
type Generator interface {
	// Name returns the backend name
	Name() string

	// Generate returns the model's raw text for the request. Rate limiting
	// must surface as *StatusError with Code 429.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is one generation call
type Request struct {
	Prompt string

	// System is an optional system instruction
	System string

	// Image is optional inline image data sent with the prompt
	Image    []byte
	MimeType string

	// MaxTokens limits the response length (0 = backend default)
	MaxTokens int
}

// Response is the raw model output
type Response struct {
	Text       string
	Model      string
	TokensUsed int
}

// StatusError is a non-2xx answer from a generation backend
type StatusError struct {
	Provider string
	Code     int
	Message  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API error (%d): %s", e.Provider, e.Code, e.Message)
}

// IsRateLimited reports whether err is a 429 from a backend
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// Config holds backend configuration
type Config struct {
	// Provider name: "gateway", "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic/gateway
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	Timeout   time.Duration
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   60 * time.Second,
		MaxTokens: 1024,
	}
}

func (c Config) maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 1024
}
