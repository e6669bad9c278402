package provider

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/poisignal/internal/model"
)

// Wikipedia searches the POI's language edition and returns the article intro
type Wikipedia struct {
	http         *HTTP
	apiURL       string // may contain %s for the language code
	timeout      time.Duration
	city         string
	language     string
	maxSentences int
}

// NewWikipedia creates the client. city and language are defaults used when
// the POI does not carry its own.
func NewWikipedia(h *HTTP, cfg model.WikipediaConfig, city, language string) *Wikipedia {
	return &Wikipedia{
		http:         h,
		apiURL:       cfg.APIURL,
		timeout:      cfg.Timeout,
		city:         city,
		language:     language,
		maxSentences: 6,
	}
}

// Name returns the provider name
func (w *Wikipedia) Name() string {
	return model.SourceWikipedia
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title  string `json:"title"`
			PageID int64  `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiPagesResponse struct {
	Query struct {
		Pages map[string]struct {
			PageID   int64  `json:"pageid"`
			Title    string `json:"title"`
			Extract  string `json:"extract"`
			Original *struct {
				Source string `json:"source"`
			} `json:"original,omitempty"`
		} `json:"pages"`
	} `json:"query"`
}

// Fetch runs a context-aware search first ("name city"), then the bare name.
// Any first-pass failure falls through to the second pass.
// A best match whose title is the city itself is rejected as too generic.
func (w *Wikipedia) Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error) {
	lang := poi.Lang(w.language)
	city := poi.City
	if city == "" {
		city = w.city
	}
	endpoint := w.endpoint(lang)

	title, err := w.search(ctx, endpoint, strings.TrimSpace(poi.Name+" "+city))
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		title = ""
	}
	if title == "" || isCity(title, city) {
		title, err = w.search(ctx, endpoint, poi.Name)
		if err != nil {
			return nil, err
		}
	}
	if title == "" || isCity(title, city) {
		return nil, nil
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts|pageimages")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("piprop", "original")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	var pages wikiPagesResponse
	if err := w.http.GetJSON(ctx, w.Name(), endpoint+"?"+params.Encode(), w.timeout, &pages); err != nil {
		return nil, eris.Wrap(err, "wikipedia: details")
	}

	for id, page := range pages.Query.Pages {
		if len(page.Extract) <= 50 {
			continue
		}
		pageID := page.PageID
		if pageID == 0 {
			pageID, _ = strconv.ParseInt(id, 10, 64)
		}
		sig := &model.Signal{
			Type:       model.SignalDescription,
			Source:     w.Name(),
			Content:    CleanWikiText(page.Extract, w.maxSentences),
			Link:       fmt.Sprintf("https://%s.wikipedia.org/?curid=%d", lang, pageID),
			Confidence: 0.95,
		}
		if page.Original != nil {
			sig.Image = page.Original.Source
		}
		return sig, nil
	}
	return nil, nil
}

func (w *Wikipedia) search(ctx context.Context, endpoint, query string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", "1")
	params.Set("format", "json")

	var res wikiSearchResponse
	if err := w.http.GetJSON(ctx, w.Name(), endpoint+"?"+params.Encode(), w.timeout, &res); err != nil {
		return "", eris.Wrap(err, "wikipedia: search")
	}
	if len(res.Query.Search) == 0 {
		return "", nil
	}
	return res.Query.Search[0].Title, nil
}

func (w *Wikipedia) endpoint(lang string) string {
	if strings.Contains(w.apiURL, "%s") {
		return fmt.Sprintf(w.apiURL, lang)
	}
	return w.apiURL
}

func isCity(title, city string) bool {
	return city != "" && strings.EqualFold(strings.TrimSpace(title), strings.TrimSpace(city))
}

var (
	wikiParens = regexp.MustCompile(`\s*\([^)]*\)`)
	wikiRefs   = regexp.MustCompile(`\[\d+\]`)
	wikiAlt    = regexp.MustCompile(`\[Alt:[^\]]*\]`)
)

// CleanWikiText removes parentheticals, [n] references and [Alt: ...] markers
// and keeps at most maxSentences sentences (0 keeps everything).
func CleanWikiText(text string, maxSentences int) string {
	text = wikiParens.ReplaceAllString(text, "")
	text = wikiRefs.ReplaceAllString(text, "")
	text = wikiAlt.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if maxSentences <= 0 {
		return text
	}

	sentences := strings.Split(text, ". ")
	if len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	out := strings.Join(sentences, ". ")
	if !strings.HasSuffix(out, ".") {
		out += "."
	}
	return out
}
