package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
)

// RemoteTier talks to the durable cache service. Every failure is a miss.
type RemoteTier struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type remoteGetResponse struct {
	Found *bool           `json:"found,omitempty"`
	Data  json.RawMessage `json:"data"`
}

type remoteSetRequest struct {
	Key      string          `json:"key"`
	Data     json.RawMessage `json:"data"`
	Language string          `json:"language"`
}

// NewRemoteTier creates a client for the cache service at baseURL
func NewRemoteTier(baseURL string, client *http.Client, logger *zap.Logger) *RemoteTier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RemoteTier{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		logger:     logging.Or(logger),
	}
}

// Get fetches a key. Network errors, non-200 answers and bad payloads are
// logged at debug level and reported as a miss.
func (r *RemoteTier) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	endpoint := fmt.Sprintf("%s/cache?key=%s", r.baseURL, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		r.miss(key, err)
		return nil, false
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.miss(key, err)
		return nil, false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusNotFound {
			r.miss(key, eris.Errorf("status %d", resp.StatusCode))
		}
		return nil, false
	}

	var body remoteGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		r.miss(key, err)
		return nil, false
	}
	if body.Found != nil && !*body.Found {
		return nil, false
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return nil, false
	}
	return body.Data, true
}

// Set stores a value remotely. The error is informational; callers treat
// the remote tier as best effort.
func (r *RemoteTier) Set(ctx context.Context, key, language string, data json.RawMessage) error {
	body, err := json.Marshal(remoteSetRequest{Key: key, Data: data, Language: language})
	if err != nil {
		return eris.Wrap(err, "remote cache: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/cache", bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "remote cache: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "remote cache: post")
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("remote cache: status %d", resp.StatusCode)
	}
	return nil
}

func (r *RemoteTier) miss(key string, err error) {
	r.logger.Debug("remote cache: miss", zap.String("key", key), zap.Error(err))
}
