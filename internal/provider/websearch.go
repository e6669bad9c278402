package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/health"
	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

type retryModeKey struct{}

// WithRetryMode marks ctx as a user-requested retry: web search then tries
// a wider set of query permutations.
func WithRetryMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryModeKey{}, true)
}

// RetryMode reports whether ctx carries the retry flag
func RetryMode(ctx context.Context) bool {
	v, _ := ctx.Value(retryModeKey{}).(bool)
	return v
}

// WebSearch aggregates search results from a primary backend, falling back
// to a secondary backend whenever the primary fails or is degraded.
type WebSearch struct {
	primary    SearchBackend
	fallback   SearchBackend
	tracker    *health.Tracker
	maxResults int
	city       string
	logger     *zap.Logger
}

// NewWebSearch creates the client. fallback may be nil.
func NewWebSearch(primary, fallback SearchBackend, tracker *health.Tracker, maxResults int, city string, logger *zap.Logger) *WebSearch {
	if maxResults <= 0 {
		maxResults = 8
	}
	return &WebSearch{
		primary:    primary,
		fallback:   fallback,
		tracker:    tracker,
		maxResults: maxResults,
		city:       city,
		logger:     logging.Or(logger),
	}
}

func (w *WebSearch) Name() string {
	return model.SourceWebSearch
}

// Fetch runs the query plan until one query returns items
func (w *WebSearch) Fetch(ctx context.Context, poi model.Poi) (*model.Signal, error) {
	if w.primary == nil && w.fallback == nil {
		return nil, nil
	}
	w.checkQuota(ctx)

	var items []SearchItem
	for _, q := range Queries(poi, w.city, RetryMode(ctx)) {
		found, err := w.search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "web_search: cancelled")
			}
			w.logger.Debug("web_search: query failed",
				zap.String("query", q),
				zap.Error(err))
			continue
		}
		if len(found) > 0 {
			items = found
			break
		}
	}
	if len(items) == 0 {
		return nil, nil
	}
	return aggregate(items, w.maxResults), nil
}

// Queries returns the search queries for poi in the order they are tried
func Queries(poi model.Poi, defaultCity string, retry bool) []string {
	name := strings.TrimSpace(poi.Name)
	clean := normalize.CleanName(name)
	city := poi.City
	if city == "" {
		city = defaultCity
	}
	hasClean := clean != name && len([]rune(clean)) > 2

	var queries []string
	add := func(parts ...string) {
		q := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		if q == "" {
			return
		}
		for _, existing := range queries {
			if existing == q {
				return
			}
		}
		queries = append(queries, q)
	}

	if retry {
		if hasClean {
			add(clean, city)
		}
		add(name, city)
		if poi.Road != "" {
			if hasClean {
				add(clean, poi.Road, city)
			}
			add(name, poi.Road, city)
		}
		base := clean
		if base == "" {
			base = name
		}
		add(base, city, "info")
		if clean != name {
			add(clean, "Belgium")
		}
		add(name, "Belgium")
	} else {
		add(name, city)
		if hasClean {
			add(clean, city)
		}
		if poi.City != "" && defaultCity != "" && !strings.EqualFold(poi.City, defaultCity) {
			add(name, defaultCity)
		}
	}

	// unique multi-word names are often indexed without the city
	if len(strings.Fields(name)) > 1 {
		add(name)
	}
	return queries
}

// search tries the primary backend and falls back immediately on a
// structural failure. A degraded primary is skipped. The fallback is the
// last resort: it is never degraded and an empty answer from it simply
// means no hits.
func (w *WebSearch) search(ctx context.Context, query string) ([]SearchItem, error) {
	var errs []error
	if w.primary != nil && (w.tracker == nil || !w.tracker.IsDegraded(w.primary.Name())) {
		items, err := w.primary.Search(ctx, query, w.maxResults)
		if err == nil {
			if w.tracker != nil {
				w.tracker.RecordSuccess(w.primary.Name())
			}
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.recordFailure(w.primary.Name(), err)
		errs = append(errs, err)
	}

	if w.fallback != nil {
		items, err := w.fallback.Search(ctx, query, w.maxResults)
		switch {
		case err == nil:
			return items, nil
		case errors.Is(err, ErrEmptyResults):
			return nil, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil, eris.Wrap(ErrDegraded, "web_search: no backend available")
	}
	return nil, errors.Join(errs...)
}

func (w *WebSearch) recordFailure(backend string, err error) {
	if w.tracker == nil {
		return
	}
	kind := health.ClassifyStatus(StatusCode(err))
	w.tracker.RecordFailure(backend, kind, err.Error())
}

// checkQuota polls the primary's remaining credits at most once per poll
// interval. No credits degrades it; credits on a degraded primary restore it.
func (w *WebSearch) checkQuota(ctx context.Context) {
	if w.primary == nil || w.tracker == nil || !w.tracker.ShouldCheckQuota(w.primary.Name()) {
		return
	}
	credits, err := w.primary.RemainingCredits(ctx)
	if err != nil {
		w.logger.Debug("web_search: quota check failed",
			zap.String("backend", w.primary.Name()),
			zap.Error(err))
		return
	}
	switch {
	case credits <= 0:
		w.tracker.MarkDegraded(w.primary.Name(), "no remaining credits")
	case w.tracker.IsDegraded(w.primary.Name()):
		w.tracker.Restore(w.primary.Name())
	}
}

type searchSnippet struct {
	text  string
	link  string
	image string
}

func aggregate(items []SearchItem, max int) *model.Signal {
	if len(items) > max {
		items = items[:max]
	}

	var snippets []searchSnippet
	for _, item := range items {
		s := searchSnippet{text: item.Snippet, link: item.Link}
		if item.Pagemap != nil {
			if len(item.Pagemap.Metatags) > 0 {
				meta := item.Pagemap.Metatags[0]
				rich := firstTag(meta, "og:description", "twitter:description", "description")
				if len(rich) > len(s.text) {
					s.text = rich
				}
				s.image = meta["og:image"]
			}
			if len(item.Pagemap.CseImage) > 0 && item.Pagemap.CseImage[0].Src != "" {
				s.image = item.Pagemap.CseImage[0].Src
			}
		}
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		if s.image != "" && !AllowImage(s.image) {
			s.image = ""
		}
		snippets = append(snippets, s)
	}
	if len(snippets) == 0 {
		return nil
	}

	blocks := make([]string, len(snippets))
	var images []string
	for i, s := range snippets {
		blocks[i] = fmt.Sprintf("[Link: %s] %s", s.link, s.text)
		if s.image != "" {
			images = append(images, s.image)
		}
	}
	images = FilterImages(images)

	sig := &model.Signal{
		Type:       model.SignalDescription,
		Source:     model.SourceWebSearch,
		Content:    strings.Join(blocks, "\n\n"),
		Link:       items[0].Link,
		Images:     images,
		Confidence: 0.75,
	}
	if len(images) > 0 {
		sig.Image = images[0]
	}
	return sig
}
