package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrEmptyResults marks a search answer without items. It counts as a
// structural failure of the backend.
var ErrEmptyResults = errors.New("search returned no items")

// SearchItem is one hit from a search backend
type SearchItem struct {
	Title   string   `json:"title"`
	Snippet string   `json:"snippet"`
	Link    string   `json:"link"`
	Pagemap *Pagemap `json:"pagemap,omitempty"`
}

// Pagemap carries the structured data a search engine extracted from a page
type Pagemap struct {
	Metatags []map[string]string `json:"metatags,omitempty"`
	CseImage []struct {
		Src string `json:"src"`
	} `json:"cse_image,omitempty"`
}

// SearchBackend is a web search service with a quota
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, num int) ([]SearchItem, error)
	RemainingCredits(ctx context.Context) (int, error)
}

// HTTPSearchBackend talks to a search service exposing
// GET /search?q=&num= and GET /usage
type HTTPSearchBackend struct {
	name    string
	http    *HTTP
	baseURL string
	apiKey  string
	timeout time.Duration
}

func NewHTTPSearchBackend(name string, h *HTTP, baseURL, apiKey string, timeout time.Duration) *HTTPSearchBackend {
	return &HTTPSearchBackend{
		name:    name,
		http:    h,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

func (b *HTTPSearchBackend) Name() string {
	return b.name
}

type searchResponse struct {
	Items []SearchItem `json:"items"`
}

// Search returns the items for query. An empty list is ErrEmptyResults.
func (b *HTTPSearchBackend) Search(ctx context.Context, query string, num int) ([]SearchItem, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("num", strconv.Itoa(num))

	var res searchResponse
	if err := b.getJSON(ctx, "/search?"+params.Encode(), &res); err != nil {
		return nil, err
	}
	if len(res.Items) == 0 {
		return nil, ErrEmptyResults
	}
	return res.Items, nil
}

// RemainingCredits polls the backend's usage endpoint
func (b *HTTPSearchBackend) RemainingCredits(ctx context.Context) (int, error) {
	var res struct {
		RemainingCredits *int `json:"remaining_credits"`
	}
	if err := b.getJSON(ctx, "/usage", &res); err != nil {
		return 0, err
	}
	if res.RemainingCredits == nil {
		return 0, eris.Wrapf(ErrMalformed, "%s: usage without remaining_credits", b.name)
	}
	return *res.RemainingCredits, nil
}

func (b *HTTPSearchBackend) getJSON(ctx context.Context, path string, out any) error {
	var header http.Header
	if b.apiKey != "" {
		header = http.Header{"Authorization": []string{"Bearer " + b.apiKey}}
	}
	resp, err := b.http.Get(ctx, b.name, b.baseURL+path, b.timeout, header)
	if err != nil {
		return err
	}
	if err := decodeJSON(resp.Body, out); err != nil {
		return eris.Wrapf(err, "%s: decode", b.name)
	}
	return nil
}
