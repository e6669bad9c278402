package llm

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/cache"
	"github.com/ppiankov/poisignal/internal/logging"
	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// Outcome classifies a synthesis call
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeMalformed
	OutcomeRateLimited
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "failed"
	}
}

// Result is the tagged result of one synthesis stage. Write holds the cache
// entry of a successful stage until the caller commits it.
type Result[T any] struct {
	Outcome  Outcome
	Value    T
	Err      error
	Attempts int
	Write    *Write
}

// Write is a pending cache entry
type Write struct {
	Key      string
	Language string
	Data     any
}

// OK reports whether the stage produced a usable value
func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeOK
}

// Cache receives successful stage output. cache.Layered satisfies it.
type Cache interface {
	Set(ctx context.Context, key, language string, data any)
}

// Synthesizer runs the synthesis stages against a Generator with backoff on
// rate limiting
type Synthesizer struct {
	gen         Generator
	cache       Cache
	city        string
	language    string
	maxAttempts int
	shortBase   time.Duration
	fullBase    time.Duration
	arrivalBase time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

// NewSynthesizer creates a synthesizer. gen may be nil, in which case every
// stage fails without I/O.
func NewSynthesizer(gen Generator, c Cache, cfg model.LLMConfig, city, language string, logger *zap.Logger) *Synthesizer {
	s := &Synthesizer{
		gen:         gen,
		cache:       c,
		city:        city,
		language:    language,
		maxAttempts: cfg.MaxAttempts,
		shortBase:   cfg.ShortBaseDelay,
		fullBase:    cfg.FullBaseDelay,
		arrivalBase: cfg.ArrivalBaseDelay,
		sleep:       sleepCtx,
		logger:      logging.Or(logger),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.shortBase <= 0 {
		s.shortBase = 3 * time.Second
	}
	if s.fullBase <= 0 {
		s.fullBase = 4 * time.Second
	}
	if s.arrivalBase <= 0 {
		s.arrivalBase = 2 * time.Second
	}
	return s
}

// Enabled reports whether a generator is configured
func (s *Synthesizer) Enabled() bool {
	return s != nil && s.gen != nil
}

type shortEntry struct {
	model.ShortDescription
	Images []string `json:"images,omitempty"`
}

// Short produces the 5-7 line description of a POI
func (s *Synthesizer) Short(ctx context.Context, poi model.Poi, payload model.MergedPayload) Result[*model.ShortDescription] {
	lang := poi.Lang(s.language)
	text, res := s.generate(ctx, "short", s.shortBase, ShortPrompt(poi, payload, s.city, lang))
	out := Result[*model.ShortDescription]{Outcome: res.Outcome, Err: res.Err, Attempts: res.Attempts}
	if !res.OK() {
		return out
	}

	var short model.ShortDescription
	if err := ParseJSON(text, &short); err != nil {
		return malformed(s, out, "short", err)
	}
	short.Description = strings.TrimSpace(short.Description)
	if short.Description == "" {
		return malformed(s, out, "short", eris.New("empty description"))
	}

	out.Value = &short
	out.Write = &Write{Key: cache.KeyFor(cache.KindShort, poi, s.language), Language: lang, Data: shortEntry{ShortDescription: short, Images: payload.Images}}
	return out
}

// Full produces the standard and extended details. short is the validated
// short description the details must build on.
func (s *Synthesizer) Full(ctx context.Context, poi model.Poi, payload model.MergedPayload, short string) Result[*model.Details] {
	lang := poi.Lang(s.language)
	text, res := s.generate(ctx, "full", s.fullBase, FullPrompt(poi, payload, short, s.city, lang))
	out := Result[*model.Details]{Outcome: res.Outcome, Err: res.Err, Attempts: res.Attempts}
	if !res.OK() {
		return out
	}

	var details model.Details
	if err := ParseJSON(text, &details); err != nil {
		return malformed(s, out, "full", err)
	}
	if details.Standard.Description == "" && details.Extended.FullDescription == "" {
		return malformed(s, out, "full", eris.New("no description in details"))
	}

	out.Value = &details
	out.Write = &Write{Key: cache.KeyFor(cache.KindFull, poi, s.language), Language: lang, Data: details}
	return out
}

// Arrival produces two sentences on how to reach the POI
func (s *Synthesizer) Arrival(ctx context.Context, poi model.Poi) Result[string] {
	lang := poi.Lang(s.language)
	text, res := s.generate(ctx, "arrival", s.arrivalBase, ArrivalPrompt(poi, s.city, lang))
	out := Result[string]{Outcome: res.Outcome, Err: res.Err, Attempts: res.Attempts}
	if !res.OK() {
		return out
	}

	text = CleanText(text)
	if text == "" {
		return malformed(s, out, "arrival", eris.New("empty text"))
	}
	out.Value = text
	out.Write = &Write{Key: cache.KeyFor(cache.KindArrival, poi, s.language), Language: lang, Data: map[string]string{"text": text}}
	return out
}

// Welcome produces the tour introduction for a city and its route
func (s *Synthesizer) Welcome(ctx context.Context, city string, pois []model.Poi) Result[string] {
	if city == "" {
		city = s.city
	}
	lang := s.language
	variant := ""
	if len(pois) > 0 {
		lang = pois[0].Lang(s.language)
		variant = pois[0].Variant()
	}

	text, res := s.generate(ctx, "welcome", s.arrivalBase, WelcomePrompt(pois, city, lang))
	out := Result[string]{Outcome: res.Outcome, Err: res.Err, Attempts: res.Attempts}
	if !res.OK() {
		return out
	}

	text = CleanText(text)
	if text == "" {
		return malformed(s, out, "welcome", eris.New("empty text"))
	}
	out.Value = text
	identity := strings.ReplaceAll(normalize.PoiName(city), " ", "-")
	out.Write = &Write{Key: cache.Key(cache.KindWelcome, identity, lang, variant), Language: lang, Data: map[string]string{"text": text}}
	s.Commit(ctx, out.Write)
	return out
}

type rawResult = Result[struct{}]

// generate calls the backend, retrying only on 429 with base << attempt
// between attempts
func (s *Synthesizer) generate(ctx context.Context, stage string, base time.Duration, prompt string) (string, rawResult) {
	if s.gen == nil {
		return "", rawResult{Outcome: OutcomeFailed, Err: eris.New("llm: no generator configured")}
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", rawResult{Outcome: OutcomeFailed, Err: err, Attempts: attempt}
		}

		resp, err := s.gen.Generate(ctx, Request{Prompt: prompt})
		if err == nil {
			return resp.Text, rawResult{Outcome: OutcomeOK, Attempts: attempt + 1}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", rawResult{Outcome: OutcomeFailed, Err: ctxErr, Attempts: attempt + 1}
		}
		if !IsRateLimited(err) {
			s.logger.Warn("llm: generation failed",
				zap.String("stage", stage),
				zap.String("provider", s.gen.Name()),
				zap.Error(err))
			return "", rawResult{Outcome: OutcomeFailed, Err: err, Attempts: attempt + 1}
		}

		lastErr = err
		if attempt == s.maxAttempts-1 {
			break
		}
		wait := base << attempt
		s.logger.Warn("llm: rate limited, retrying",
			zap.String("stage", stage),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			return "", rawResult{Outcome: OutcomeFailed, Err: err, Attempts: attempt + 1}
		}
	}

	s.logger.Warn("llm: rate limit attempts exhausted", zap.String("stage", stage), zap.Int("attempts", s.maxAttempts))
	return "", rawResult{Outcome: OutcomeRateLimited, Err: lastErr, Attempts: s.maxAttempts}
}

func malformed[T any](s *Synthesizer, out Result[T], stage string, err error) Result[T] {
	s.logger.Debug("llm: malformed output", zap.String("stage", stage), zap.Error(err))
	out.Outcome = OutcomeMalformed
	out.Err = eris.Wrapf(err, "llm: parse %s", stage)
	return out
}

// Commit writes pending stage output to the cache. Nothing is written once
// ctx is done.
func (s *Synthesizer) Commit(ctx context.Context, writes ...*Write) {
	if s.cache == nil || ctx.Err() != nil {
		return
	}
	for _, w := range writes {
		if w != nil {
			s.cache.Set(ctx, w.Key, w.Language, w.Data)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
