package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/poisignal/internal/model"
)

// DuckDuckGo queries the instant-answer API
type DuckDuckGo struct {
	http    *HTTP
	baseURL string
	timeout time.Duration
	city    string
}

func NewDuckDuckGo(h *HTTP, cfg model.DuckDuckGoConfig, city string) *DuckDuckGo {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &DuckDuckGo{http: h, baseURL: cfg.BaseURL, timeout: timeout, city: city}
}

func (d *DuckDuckGo) Name() string {
	return model.SourceDuckDuckGo
}

type ddgResponse struct {
	AbstractText string `json:"AbstractText"`
	AbstractURL  string `json:"AbstractURL"`
	Image        string `json:"Image"`
}

func (d *DuckDuckGo) Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error) {
	city := poi.City
	if city == "" {
		city = d.city
	}
	params := url.Values{}
	params.Set("q", strings.TrimSpace(poi.Name+" "+city))
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var res ddgResponse
	if err := d.http.GetJSON(ctx, d.Name(), d.baseURL+"?"+params.Encode(), d.timeout, &res); err != nil {
		return nil, err
	}
	if strings.TrimSpace(res.AbstractText) == "" {
		return nil, nil
	}

	image := res.Image
	if strings.HasPrefix(image, "/") {
		image = "https://duckduckgo.com" + image
	}
	return &model.Signal{
		Type:       model.SignalDescription,
		Source:     d.Name(),
		Content:    res.AbstractText,
		Link:       res.AbstractURL,
		Image:      image,
		Confidence: 0.7,
	}, nil
}
