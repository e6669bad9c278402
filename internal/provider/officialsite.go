package provider

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/util"
	"github.com/ppiankov/poisignal/internal/worker"
)

// OfficialSite reads title and description metadata from a POI's website.
// With a proxy configured it asks the proxy's /scrape-meta endpoint; otherwise
// it fetches the page itself after consulting robots.txt.
type OfficialSite struct {
	http     *HTTP
	robots   *util.RobotsChecker
	limiter  *worker.Limiter
	proxyURL string
	timeout  time.Duration
	maxChars int
	logger   *zap.Logger
}

// NewOfficialSite creates the scraper. robots and limiter are only used in
// direct mode and may be nil.
func NewOfficialSite(h *HTTP, robots *util.RobotsChecker, limiter *worker.Limiter, cfg model.ScraperConfig, logger *zap.Logger) *OfficialSite {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 800
	}
	return &OfficialSite{
		http:     h,
		robots:   robots,
		limiter:  limiter,
		proxyURL: strings.TrimRight(cfg.ProxyURL, "/"),
		timeout:  cfg.Timeout,
		maxChars: maxChars,
		logger:   logging.Or(logger),
	}
}

// SiteMeta is the title/description pair read from a page
type SiteMeta struct {
	Found       bool   `json:"found"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Scrape returns an official_site signal or nil on any failure
func (s *OfficialSite) Scrape(ctx context.Context, siteURL string) *model.Signal {
	var (
		meta *SiteMeta
		err  error
	)
	if s.proxyURL != "" {
		meta, err = s.viaProxy(ctx, siteURL)
	} else {
		meta, err = s.direct(ctx, siteURL)
	}
	if err != nil {
		s.logger.Debug("scraper: failed",
			zap.String("url", siteURL),
			zap.Error(err))
		return nil
	}
	if meta == nil || !meta.Found || meta.Description == "" {
		return nil
	}

	content := meta.Description
	if meta.Title != "" {
		content = meta.Title + ": " + meta.Description
	}
	return &model.Signal{
		Type:       model.SignalOfficialSite,
		Source:     model.SourceOfficialSite,
		Content:    truncate(content, s.maxChars),
		Link:       siteURL,
		Confidence: 0.95,
	}
}

func (s *OfficialSite) viaProxy(ctx context.Context, siteURL string) (*SiteMeta, error) {
	var meta SiteMeta
	endpoint := s.proxyURL + "/scrape-meta?url=" + url.QueryEscape(siteURL)
	if err := s.http.GetJSON(ctx, model.SourceOfficialSite, endpoint, s.timeout, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *OfficialSite) direct(ctx context.Context, siteURL string) (*SiteMeta, error) {
	if s.robots != nil {
		allowed, delay, err := s.robots.CanFetch(ctx, siteURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			s.logger.Debug("scraper: disallowed by robots.txt", zap.String("url", siteURL))
			return nil, nil
		}
		if s.limiter != nil && delay > 0 {
			if err := s.limiter.WaitWithDelay(ctx, siteURL, delay); err != nil {
				return nil, err
			}
		}
	}

	resp, err := s.http.Get(ctx, model.SourceOfficialSite, siteURL, s.timeout, nil)
	if err != nil {
		return nil, err
	}
	return ParseMeta(resp.Body)
}

// ParseMeta extracts title and description from an HTML document
func ParseMeta(body []byte) (*SiteMeta, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	meta := func(selector string) string {
		v, _ := doc.Find(selector).First().Attr("content")
		return strings.TrimSpace(v)
	}

	description := meta(`meta[property="og:description"]`)
	if description == "" {
		description = meta(`meta[name="description"]`)
	}
	title := meta(`meta[property="og:title"]`)
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	return &SiteMeta{
		Found:       description != "",
		Title:       title,
		Description: description,
	}, nil
}
