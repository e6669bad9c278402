package pipeline

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/poisignal/internal/cache"
	"github.com/ppiankov/poisignal/internal/llm"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/provider"
	"github.com/ppiankov/poisignal/internal/score"
)

type fakeGenerator struct {
	text  string
	err   error
	calls atomic.Int32
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(context.Context, llm.Request) (*llm.Response, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return &llm.Response{Text: g.text}, nil
}

const shortJSON = `{"description": "M Leuven toont oude en hedendaagse kunst.", "confidence": "Hoog"}`

func newTestEnricher(t *testing.T, gen llm.Generator, opts Options, providers ...provider.Provider) (*Enricher, *cache.Layered) {
	t.Helper()
	layered := cache.NewLayered(cache.NewLocalTier(cache.NewMemoryStore(1<<20)), nil, nil)

	var synth *llm.Synthesizer
	if gen != nil {
		synth = llm.NewSynthesizer(gen, layered, model.DefaultConfig().LLM, "Leuven", "nl", nil)
	}
	g := NewGatherer(provider.NewRegistry(providers...), nil, nil, false, "nl", nil)
	return NewEnricher(g, score.NewScorer("Leuven"), synth, layered, "nl", opts, nil), layered
}

func TestEnricher_MissThenHit(t *testing.T) {
	gen := &fakeGenerator{text: shortJSON}
	e, _ := newTestEnricher(t, gen, Options{}, &stubProvider{name: "wikipedia", signal: wikiSignal})

	first, err := e.Enrich(context.Background(), museum)
	require.NoError(t, err)
	assert.Equal(t, []model.EnrichState{
		model.StateIdle, model.StateGathering, model.StateScoring, model.StateMerging,
		model.StateCacheCheck, model.StateCacheMiss, model.StateSynthesizing,
		model.StateCacheWrite, model.StateDone,
	}, first.Trace)
	assert.Equal(t, model.StateDone, first.State)
	require.NotNil(t, first.Short)
	assert.Equal(t, "Hoog", first.Short.Confidence)
	assert.False(t, first.FromCache)
	assert.NotEmpty(t, first.RunID)
	assert.Equal(t, model.SourceWikipedia, first.Resolution.Source)
	require.Len(t, first.Payload.DescriptionCandidates, 1)

	second, err := e.Enrich(context.Background(), museum)
	require.NoError(t, err)
	assert.Equal(t, []model.EnrichState{
		model.StateIdle, model.StateGathering, model.StateScoring, model.StateMerging,
		model.StateCacheCheck, model.StateCacheHit, model.StateDone,
	}, second.Trace)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Short.Description, second.Short.Description)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestEnricher_FullDetailsRequireBothEntries(t *testing.T) {
	gen := &fakeGenerator{text: shortJSON}
	e, layered := newTestEnricher(t, gen, Options{Full: true}, &stubProvider{name: "wikipedia", signal: wikiSignal})

	// Only the short stage is cached, so the full request misses.
	layered.Set(context.Background(), cache.KeyFor(cache.KindShort, museum, "nl"), "nl",
		model.ShortDescription{Description: "cached", Confidence: "Laag"})

	got, err := e.Enrich(context.Background(), museum)
	require.NoError(t, err)
	assert.False(t, got.FromCache)
	assert.Contains(t, got.Trace, model.StateSynthesizing)
	// The short JSON has no details, so the full stage is malformed and
	// only the short description is returned.
	assert.Nil(t, got.Details)
	assert.Equal(t, int32(2), gen.calls.Load())
}

func TestEnricher_NoSynthesis(t *testing.T) {
	e, layered := newTestEnricher(t, nil, Options{}, &stubProvider{name: "wikipedia", signal: wikiSignal})

	got, err := e.Enrich(context.Background(), museum)
	require.NoError(t, err)
	assert.Equal(t, model.StateDone, got.State)
	assert.Equal(t, model.StateCacheMiss, got.Trace[len(got.Trace)-2])
	assert.Nil(t, got.Short)
	assert.Equal(t, wikiSignal.Content, got.Resolution.Description)

	_, ok := layered.Get(context.Background(), cache.KeyFor(cache.KindShort, museum, "nl"))
	assert.False(t, ok)
}

func TestEnricher_SynthesisFailureKeepsResolution(t *testing.T) {
	gen := &fakeGenerator{err: &llm.StatusError{Provider: "fake", Code: http.StatusInternalServerError, Message: "down"}}
	e, _ := newTestEnricher(t, gen, Options{})

	got, err := e.Enrich(context.Background(), museum)
	require.NoError(t, err)
	assert.Equal(t, model.StateDone, got.State)
	assert.NotContains(t, got.Trace, model.StateCacheWrite)
	assert.Nil(t, got.Short)
	assert.Equal(t, model.SourceSystem, got.Resolution.Source)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestEnricher_CancelledDiscardsResults(t *testing.T) {
	gen := &fakeGenerator{text: shortJSON}
	e, layered := newTestEnricher(t, gen, Options{},
		&stubProvider{name: "wikipedia", signal: wikiSignal},
		&stubProvider{name: "overpass", block: true})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	got, err := e.Enrich(ctx, museum)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, got)
	assert.Equal(t, model.StateCancelled, got.State)
	assert.Equal(t, model.StateCancelled, got.Trace[len(got.Trace)-1])
	assert.Empty(t, got.Signals)
	assert.Nil(t, got.Short)
	assert.Equal(t, int32(0), gen.calls.Load())

	_, ok := layered.Get(context.Background(), cache.KeyFor(cache.KindShort, museum, "nl"))
	assert.False(t, ok)
}

func TestEnricher_SerializesSamePoi(t *testing.T) {
	gen := &fakeGenerator{text: shortJSON}
	slow := &stubProvider{name: "wikipedia", signal: wikiSignal, delay: 30 * time.Millisecond}
	e, _ := newTestEnricher(t, gen, Options{}, slow)

	var wg sync.WaitGroup
	results := make([]*model.Enrichment, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Enrich(context.Background(), museum)
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), slow.maxSeen.Load())
	assert.Equal(t, int32(1), gen.calls.Load())
	hits := 0
	for _, r := range results {
		if r.FromCache {
			hits++
		}
	}
	assert.Equal(t, 3, hits)
	assert.Empty(t, e.locks.locks)
}

// cancellingGenerator answers the short stage and cancels the run on the
// call numbered at
type cancellingGenerator struct {
	fakeGenerator
	at     int32
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if g.calls.Load()+1 == g.at {
		g.calls.Add(1)
		g.cancel()
		return nil, ctx.Err()
	}
	return g.fakeGenerator.Generate(ctx, req)
}

func TestEnricher_CancelledDuringFullWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gen := &cancellingGenerator{fakeGenerator: fakeGenerator{text: shortJSON}, at: 2, cancel: cancel}
	e, layered := newTestEnricher(t, gen, Options{Full: true}, &stubProvider{name: "wikipedia", signal: wikiSignal})

	got, err := e.Enrich(ctx, museum)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, got)
	assert.Equal(t, model.StateCancelled, got.State)
	assert.NotContains(t, got.Trace, model.StateCacheWrite)
	assert.Equal(t, int32(2), gen.calls.Load())

	for _, kind := range []string{cache.KindShort, cache.KindFull} {
		_, ok := layered.Get(context.Background(), cache.KeyFor(kind, museum, "nl"))
		assert.False(t, ok, kind)
	}
}
