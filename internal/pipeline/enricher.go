package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/cache"
	"github.com/ppiankov/poisignal/internal/llm"
	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/merge"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/score"
)

// Cache is the lookup side of the enrichment cache. cache.Layered satisfies it.
type Cache interface {
	Lookup(ctx context.Context, key string) (json.RawMessage, string, bool)
}

// Options selects the optional synthesis stages
type Options struct {
	Full    bool // standard and extended details
	Arrival bool // arrival instructions
}

// Enricher runs the per-POI enrichment state machine
type Enricher struct {
	gatherer *Gatherer
	scorer   *score.Scorer
	synth    *llm.Synthesizer
	cache    Cache
	language string
	opts     Options
	locks    *keyLocks
	now      func() time.Time
	logger   *zap.Logger
}

// NewEnricher creates an enricher. synth and c may be nil, which disables
// synthesis and caching respectively.
func NewEnricher(gatherer *Gatherer, scorer *score.Scorer, synth *llm.Synthesizer, c Cache, language string, opts Options, logger *zap.Logger) *Enricher {
	return &Enricher{
		gatherer: gatherer,
		scorer:   scorer,
		synth:    synth,
		cache:    c,
		language: language,
		opts:     opts,
		locks:    newKeyLocks(),
		now:      time.Now,
		logger:   logging.Or(logger),
	}
}

// run tracks one pass through the state machine
type run struct {
	e   *Enricher
	out *model.Enrichment
}

func (r *run) enter(state model.EnrichState) {
	r.out.State = state
	r.out.Trace = append(r.out.Trace, state)
	r.e.logger.Debug("pipeline: state",
		zap.String("run_id", r.out.RunID),
		zap.String("poi", r.out.Poi.Name),
		zap.String("state", string(state)))
}

// cancel discards everything gathered so far
func (r *run) cancel(err error) (*model.Enrichment, error) {
	r.enter(model.StateCancelled)
	return &model.Enrichment{
		RunID:     r.out.RunID,
		Poi:       r.out.Poi,
		State:     model.StateCancelled,
		Trace:     r.out.Trace,
		StartedAt: r.out.StartedAt,
		Duration:  r.e.now().Sub(r.out.StartedAt),
	}, err
}

// Enrich runs one POI through the state machine. Calls for the same POI
// identity are serialized. The only error is cancellation of ctx.
func (e *Enricher) Enrich(ctx context.Context, poi model.Poi) (*model.Enrichment, error) {
	r := &run{e: e, out: &model.Enrichment{
		RunID:      uuid.NewString(),
		Poi:        poi,
		Normalized: poi.Identity(),
		StartedAt:  e.now(),
	}}
	r.enter(model.StateIdle)

	release, err := e.locks.acquire(ctx, poi.Identity()+"_"+poi.Lang(e.language))
	if err != nil {
		return r.cancel(err)
	}
	defer release()

	lang := poi.Lang(e.language)

	r.enter(model.StateGathering)
	gathered, err := e.gatherer.Gather(ctx, poi)
	if err != nil {
		return r.cancel(err)
	}
	r.out.Entity = gathered.Entity

	r.enter(model.StateScoring)
	r.out.Signals = e.scorer.Score(poi, gathered.Signals)
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	r.enter(model.StateMerging)
	r.out.Payload = merge.Merge(r.out.Signals, gathered.Entity)
	r.out.Resolution = merge.Resolve(r.out.Signals, lang)
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	r.enter(model.StateCacheCheck)
	if e.lookup(ctx, r) {
		r.enter(model.StateCacheHit)
		r.out.FromCache = true
		return r.done(), nil
	}
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	r.enter(model.StateCacheMiss)
	if !e.synth.Enabled() {
		return r.done(), nil
	}

	r.enter(model.StateSynthesizing)
	writes := e.synthesize(ctx, r)
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}
	if len(writes) > 0 {
		r.enter(model.StateCacheWrite)
		e.synth.Commit(ctx, writes...)
	}
	return r.done(), nil
}

func (r *run) done() *model.Enrichment {
	r.enter(model.StateDone)
	r.out.Duration = r.e.now().Sub(r.out.StartedAt)
	return r.out
}

// lookup fills the run from the cache. It is a hit only when every requested
// stage is cached.
func (e *Enricher) lookup(ctx context.Context, r *run) bool {
	if e.cache == nil {
		return false
	}
	poi := r.out.Poi

	var short model.ShortDescription
	if !e.cached(ctx, cache.KeyFor(cache.KindShort, poi, e.language), &short) || short.Description == "" {
		return false
	}

	var details model.Details
	if e.opts.Full && !e.cached(ctx, cache.KeyFor(cache.KindFull, poi, e.language), &details) {
		return false
	}

	var arrival struct {
		Text string `json:"text"`
	}
	if e.opts.Arrival && (!e.cached(ctx, cache.KeyFor(cache.KindArrival, poi, e.language), &arrival) || arrival.Text == "") {
		return false
	}

	r.out.Short = &short
	if e.opts.Full {
		r.out.Details = &details
	}
	r.out.Arrival = arrival.Text
	return true
}

func (e *Enricher) cached(ctx context.Context, key string, out any) bool {
	data, tier, ok := e.cache.Lookup(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		e.logger.Debug("pipeline: undecodable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	e.logger.Debug("pipeline: cache hit", zap.String("key", key), zap.String("tier", tier))
	return true
}

// synthesize runs the requested stages and returns their pending cache
// writes. Nothing is returned when the short stage fails.
func (e *Enricher) synthesize(ctx context.Context, r *run) []*llm.Write {
	poi := r.out.Poi

	short := e.synth.Short(ctx, poi, r.out.Payload)
	if !short.OK() {
		e.logger.Info("pipeline: short description unavailable",
			zap.String("run_id", r.out.RunID),
			zap.String("outcome", short.Outcome.String()),
			zap.Error(short.Err))
		return nil
	}
	r.out.Short = short.Value
	writes := []*llm.Write{short.Write}

	if e.opts.Full {
		full := e.synth.Full(ctx, poi, r.out.Payload, short.Value.Description)
		if full.OK() {
			r.out.Details = full.Value
			writes = append(writes, full.Write)
		} else {
			e.logger.Info("pipeline: details unavailable",
				zap.String("run_id", r.out.RunID),
				zap.String("outcome", full.Outcome.String()),
				zap.Error(full.Err))
		}
	}

	if e.opts.Arrival {
		arrival := e.synth.Arrival(ctx, poi)
		if arrival.OK() {
			r.out.Arrival = arrival.Value
			writes = append(writes, arrival.Write)
		}
	}
	return writes
}
