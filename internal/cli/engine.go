package cli

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/cache"
	"github.com/ppiankov/poisignal/internal/health"
	"github.com/ppiankov/poisignal/internal/llm"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/pipeline"
	"github.com/ppiankov/poisignal/internal/provider"
	"github.com/ppiankov/poisignal/internal/score"
	"github.com/ppiankov/poisignal/internal/util"
	"github.com/ppiankov/poisignal/internal/worker"
)

// engine is the fully wired enrichment stack
type engine struct {
	enricher *pipeline.Enricher
	synth    *llm.Synthesizer
	tracker  *health.Tracker
	archive  *provider.Archive
	logger   *zap.Logger
}

// Close releases the archive database
func (e *engine) Close() {
	if e.archive != nil {
		if err := e.archive.Close(); err != nil {
			e.logger.Warn("cli: close archive", zap.Error(err))
		}
	}
}

// logHealth reports provider health and today's call counts at debug level
func (e *engine) logHealth() {
	usage := e.tracker.Usage(time.Now().Format("2006-01-02"))
	for _, s := range e.tracker.Snapshot() {
		e.logger.Debug("cli: provider health",
			zap.String("provider", s.Provider),
			zap.Bool("degraded", s.Degraded),
			zap.String("reason", s.Reason),
			zap.Int64("successes", s.Successes),
			zap.Int64("failures", s.Failures),
			zap.Int("calls_today", usage[s.Provider]))
	}
}

// newEngine wires providers, caches and the synthesizer from cfg
func newEngine(ctx context.Context, cfg model.Config, opts pipeline.Options, logger *zap.Logger) (*engine, error) {
	tracker := health.NewTracker(
		health.WithThreshold(cfg.Providers.WebSearch.DegradeThreshold),
		health.WithQuotaPollInterval(cfg.Providers.WebSearch.QuotaPollInterval),
		health.WithLogger(logger),
	)
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.Burst)
	// Public Overpass instances ask for at most one request per second
	for _, mirror := range cfg.Providers.Overpass.Mirrors {
		if u, err := url.Parse(mirror); err == nil && u.Host != "" {
			limiter.SetHostRate(u.Host, 1, 1)
		}
	}
	proxy := util.ProxyConfig{
		HTTPProxy:  cfg.HTTP.HTTPProxy,
		HTTPSProxy: cfg.HTTP.HTTPSProxy,
		NoProxy:    cfg.HTTP.NoProxy,
	}
	client := util.NewHTTPClient(cfg.HTTP.Timeout, proxy)
	h := provider.NewHTTP(client, limiter, tracker, cfg.HTTP.UserAgent, cfg.HTTP.MaxBodyBytes)

	e := &engine{tracker: tracker, logger: logger}
	p := cfg.Providers
	registry := provider.NewRegistry()

	if p.Archive.Enabled {
		archive, err := provider.OpenArchive(ctx, p.Archive.Path)
		if err != nil {
			return nil, err
		}
		e.archive = archive
		registry.Register(archive)
	}
	if p.Wikipedia.Enabled {
		registry.Register(provider.NewWikipedia(h, p.Wikipedia, cfg.City, cfg.Language))
	}
	if p.DuckDuckGo.Enabled {
		registry.Register(provider.NewDuckDuckGo(h, p.DuckDuckGo, cfg.City))
	}
	if p.Overpass.Enabled {
		robots := util.NewRobotsChecker(cfg.HTTP.UserAgent, client)
		scraper := provider.NewOfficialSite(h, robots, limiter, p.Scraper, logger)
		registry.Register(provider.NewOverpass(h, tracker, scraper, p.Overpass, cfg.Language, logger))
	}

	var search provider.Provider
	if p.WebSearch.Enabled && p.WebSearch.PrimaryURL != "" {
		primary := provider.NewHTTPSearchBackend("search_primary", h, p.WebSearch.PrimaryURL, p.WebSearch.PrimaryAPIKey, p.WebSearch.Timeout)
		var fallback provider.SearchBackend
		if p.WebSearch.FallbackURL != "" {
			fallback = provider.NewHTTPSearchBackend("search_fallback", h, p.WebSearch.FallbackURL, p.WebSearch.FallbackAPIKey, p.WebSearch.Timeout)
		}
		search = provider.NewWebSearch(primary, fallback, tracker, p.WebSearch.MaxResults, cfg.City, logger)
	}

	var resolver pipeline.EntityResolver
	if p.Wikidata.Enabled {
		resolver = provider.NewWikidata(h, p.Wikidata, cfg.Language, logger)
	}

	var (
		lookup pipeline.Cache
		store  llm.Cache
	)
	if cfg.Cache.Enabled {
		layered := newCache(cfg, proxy, logger)
		lookup, store = layered, layered
	}

	gen, err := llm.NewGenerator(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		e.Close()
		return nil, eris.Wrap(err, "configure llm")
	}
	e.synth = llm.NewSynthesizer(gen, store, cfg.LLM, cfg.City, cfg.Language, logger)

	gatherer := pipeline.NewGatherer(registry, search, resolver, p.WebSearch.AlwaysSearch, cfg.Language, logger)
	e.enricher = pipeline.NewEnricher(gatherer, score.NewScorer(cfg.City), e.synth, lookup, cfg.Language, opts, logger)

	logger.Debug("cli: engine ready",
		zap.Strings("providers", registry.Names()),
		zap.Bool("web_search", search != nil),
		zap.Bool("wikidata", resolver != nil),
		zap.Bool("synthesis", e.synth.Enabled()))
	return e, nil
}

func newCache(cfg model.Config, proxy util.ProxyConfig, logger *zap.Logger) *cache.Layered {
	var s cache.Store
	if cfg.Cache.Backend == "disk" {
		s = cache.NewDiskStore(cfg.Cache.Dir, cfg.Cache.QuotaBytes)
	} else {
		s = cache.NewMemoryStore(cfg.Cache.QuotaBytes)
	}
	local := cache.NewLocalTier(s, cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(logger))

	var remote *cache.RemoteTier
	if cfg.Cache.RemoteURL != "" {
		remote = cache.NewRemoteTier(cfg.Cache.RemoteURL, util.NewHTTPClient(cfg.Cache.Timeout, proxy), logger)
	}
	return cache.NewLayered(local, remote, logger)
}

// writeJSON writes v to path, or to stdout when path is empty or "-"
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal output")
	}
	data = append(data, '\n')
	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return eris.Wrap(err, "write stdout")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
