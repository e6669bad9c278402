package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayGenerator_Generate(t *testing.T) {
	var got gatewayRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"text": "hello"}`))
	}))
	defer server.Close()

	gen, err := NewGatewayGenerator(Config{BaseURL: server.URL + "/", APIKey: "secret", Timeout: 5 * time.Second})
	require.NoError(t, err)

	resp, err := gen.Generate(context.Background(), Request{
		Prompt:   "describe",
		System:   "be brief",
		Image:    []byte("img"),
		MimeType: "image/jpeg",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "be brief\n\ndescribe", got.Prompt)
	assert.Equal(t, "aW1n", got.Image)
	assert.Equal(t, "image/jpeg", got.MimeType)
}

func TestGatewayGenerator_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	gen, err := NewGatewayGenerator(Config{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
}

func TestNewGatewayGenerator_RequiresBaseURL(t *testing.T) {
	_, err := NewGatewayGenerator(Config{})
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(Config{})
	require.NoError(t, err)
	assert.Nil(t, gen)

	gen, err = NewGenerator(Config{Provider: "Gateway", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.Equal(t, "gateway", gen.Name())

	gen, err = NewGenerator(Config{Provider: "claude", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", gen.Name())

	_, err = NewGenerator(Config{Provider: "gemini"})
	assert.Error(t, err)
}
