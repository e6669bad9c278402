// Package pipeline runs one POI through gathering, scoring, merging, caching
// and synthesis.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/provider"
)

// SearchSkipConfidence is the average phase-one confidence at which the
// expensive web search is no longer needed
const SearchSkipConfidence = 0.75

// EntityResolver maps a POI name to its canonical identity. A nil result
// means no entity was found.
type EntityResolver interface {
	Resolve(ctx context.Context, name, lang string) *model.CanonicalEntity
}

// Gathered is the output of one gathering pass
type Gathered struct {
	Signals       []model.Signal
	Results       []model.ProviderResult
	Entity        *model.CanonicalEntity
	SearchSkipped bool
}

// Gatherer fans a POI out to the providers in two phases
type Gatherer struct {
	cheap        *provider.Registry
	search       provider.Provider
	resolver     EntityResolver
	alwaysSearch bool
	language     string
	logger       *zap.Logger
}

// NewGatherer creates a gatherer. cheap holds the phase-one providers; search
// and resolver may be nil.
func NewGatherer(cheap *provider.Registry, search provider.Provider, resolver EntityResolver, alwaysSearch bool, language string, logger *zap.Logger) *Gatherer {
	if cheap == nil {
		cheap = provider.NewRegistry()
	}
	return &Gatherer{
		cheap:        cheap,
		search:       search,
		resolver:     resolver,
		alwaysSearch: alwaysSearch,
		language:     language,
		logger:       logging.Or(logger),
	}
}

// Gather collects signals for a POI. Failed providers contribute nothing; only
// cancellation of ctx makes Gather fail.
func (g *Gatherer) Gather(ctx context.Context, poi model.Poi) (*Gathered, error) {
	providers := g.cheap.All()
	results := make([]model.ProviderResult, len(providers))
	var entity *model.CanonicalEntity

	eg, egCtx := errgroup.WithContext(ctx)
	for i, p := range providers {
		eg.Go(func() error {
			results[i] = fetch(egCtx, p, poi)
			return nil
		})
	}
	if g.resolver != nil {
		eg.Go(func() error {
			entity = g.resolver.Resolve(egCtx, poi.Name, poi.Lang(g.language))
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Gathered{Results: results, Entity: entity}
	out.Signals = g.collect(results)

	if g.search == nil {
		out.SearchSkipped = true
		return out, nil
	}
	if !ShouldSearch(out.Signals, g.alwaysSearch) {
		g.logger.Debug("gatherer: web search skipped", zap.String("poi", poi.Name))
		out.SearchSkipped = true
		return out, nil
	}

	res := fetch(ctx, g.search, poi)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Results = append(out.Results, res)
	out.Signals = append(out.Signals, g.collect([]model.ProviderResult{res})...)
	return out, nil
}

func fetch(ctx context.Context, p provider.Provider, poi model.Poi) model.ProviderResult {
	sig, err := p.Fetch(ctx, poi)
	return model.ProviderResult{Provider: p.Name(), Signal: sig, Err: err}
}

// collect keeps the signals of successful results, logging the failures
func (g *Gatherer) collect(results []model.ProviderResult) []model.Signal {
	var signals []model.Signal
	for _, r := range results {
		switch {
		case r.Err != nil && errors.Is(r.Err, provider.ErrDegraded):
			g.logger.Debug("gatherer: provider bypassed", zap.String("provider", r.Provider))
		case r.Err != nil:
			g.logger.Warn("gatherer: provider failed", zap.String("provider", r.Provider), zap.Error(r.Err))
		case r.Signal != nil:
			signals = append(signals, *r.Signal)
		}
	}
	return signals
}

// ShouldSearch decides whether phase two runs. With alwaysSearch unset the
// search is skipped once a Wikipedia or official-site signal exists or the
// average confidence reaches SearchSkipConfidence.
func ShouldSearch(signals []model.Signal, alwaysSearch bool) bool {
	if alwaysSearch || len(signals) == 0 {
		return true
	}
	var total float64
	for _, s := range signals {
		if s.Source == model.SourceWikipedia || s.Type == model.SignalOfficialSite {
			return false
		}
		total += s.Confidence
	}
	return total/float64(len(signals)) < SearchSkipConfidence
}
