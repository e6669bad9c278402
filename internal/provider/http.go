package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/poisignal/internal/health"
	"github.com/ppiankov/poisignal/internal/worker"
)

// ErrMalformed marks a 2xx answer whose body could not be decoded
var ErrMalformed = errors.New("malformed payload")

// ErrLocalPacing marks a request that was never sent because the local
// per-host limiter could not grant a slot in time. It says nothing about
// the health of the remote host.
var ErrLocalPacing = errors.New("local pacing")

// HTTP is the outbound client shared by all providers: it applies the
// user agent, per-host pacing, per-call timeouts, a body size limit and usage
// accounting.
type HTTP struct {
	client    *http.Client
	limiter   *worker.Limiter
	tracker   *health.Tracker
	userAgent string
	maxBytes  int64
}

// NewHTTP creates the shared client. limiter and tracker may be nil.
func NewHTTP(client *http.Client, limiter *worker.Limiter, tracker *health.Tracker, userAgent string, maxBytes int64) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}
	return &HTTP{
		client:    client,
		limiter:   limiter,
		tracker:   tracker,
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// Response is a fetched body with the final URL and content type
type Response struct {
	Body        []byte
	FinalURL    string
	ContentType string
}

// Get performs a GET bounded by timeout. Non-2xx answers become *StatusError.
// Waiting for the host's rate slot happens before the timeout starts.
func (h *HTTP) Get(ctx context.Context, provider, rawURL string, timeout time.Duration, header http.Header) (*Response, error) {
	if h.limiter != nil {
		if err := h.limiter.Wait(ctx, rawURL); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, eris.Wrapf(errors.Join(ErrLocalPacing, err), "%s: rate limit wait", provider)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", provider)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if h.tracker != nil {
		h.tracker.RecordCall(provider)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: request", provider)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "%s: read body", provider)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode, Body: truncate(strings.TrimSpace(string(body)), 200)}
	}

	return &Response{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// GetJSON performs Get and decodes the body into out
func (h *HTTP) GetJSON(ctx context.Context, provider, rawURL string, timeout time.Duration, out any) error {
	resp, err := h.Get(ctx, provider, rawURL, timeout, nil)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return eris.Wrapf(err, "%s: decode", provider)
	}
	return nil
}

func decodeJSON(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Join(ErrMalformed, err)
	}
	return nil
}

// StatusCode extracts the HTTP status from an error chain, 0 if none
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
