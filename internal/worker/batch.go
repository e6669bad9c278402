package worker

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/poisignal/internal/model"
)

// Enricher enriches a single POI
type Enricher interface {
	Enrich(ctx context.Context, poi model.Poi) (*model.Enrichment, error)
}

// EnrichJob is one POI enrichment submitted to the pool
type EnrichJob struct {
	Poi      model.Poi
	Enricher Enricher
}

// Execute executes the enrichment
func (j *EnrichJob) Execute(ctx context.Context) Result {
	enrichment, err := j.Enricher.Enrich(ctx, j.Poi)
	return &EnrichResult{
		Poi:        j.Poi,
		Enrichment: enrichment,
		Error:      err,
	}
}

// EnrichResult is the outcome of one EnrichJob
type EnrichResult struct {
	Poi        model.Poi         `json:"poi"`
	Enrichment *model.Enrichment `json:"enrichment,omitempty"`
	Error      error             `json:"-"`
}

// GetError returns the enrichment error
func (r *EnrichResult) GetError() error {
	return r.Error
}

// BatchProcessor enriches many POIs concurrently
type BatchProcessor struct {
	enricher    Enricher
	concurrency int
	language    string
}

// NewBatchProcessor creates a new batch processor. language is the default
// used to tell duplicate POIs apart.
func NewBatchProcessor(enricher Enricher, concurrency int, language string) *BatchProcessor {
	return &BatchProcessor{
		enricher:    enricher,
		concurrency: concurrency,
		language:    language,
	}
}

// ProcessPois enriches the POIs concurrently. POIs sharing an identity and
// language are enriched once, so the same POI never runs twice in parallel.
func (b *BatchProcessor) ProcessPois(ctx context.Context, pois []model.Poi) []*EnrichResult {
	pois = Dedupe(pois, b.language)
	if len(pois) == 0 {
		return []*EnrichResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, poi := range pois {
		pool.Submit(&EnrichJob{Poi: poi, Enricher: b.enricher})
	}

	results := pool.Wait()
	out := make([]*EnrichResult, len(results))
	for i, r := range results {
		out[i] = r.(*EnrichResult)
	}
	return out
}

// ProcessFile reads POIs from a YAML or JSON file and enriches them
func (b *BatchProcessor) ProcessFile(ctx context.Context, path string) ([]*EnrichResult, error) {
	pois, err := ReadPoisFromFile(path)
	if err != nil {
		return nil, err
	}
	return b.ProcessPois(ctx, pois), nil
}

// Dedupe drops POIs whose identity and language were already seen
func Dedupe(pois []model.Poi, language string) []model.Poi {
	seen := make(map[string]bool, len(pois))
	out := make([]model.Poi, 0, len(pois))
	for _, p := range pois {
		if strings.TrimSpace(p.Name) == "" && p.ID == "" {
			continue
		}
		key := p.Identity() + "|" + p.Lang(language)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// poiFile accepts either a bare list or {pois: [...]}
type poiFile struct {
	Pois []model.Poi `yaml:"pois"`
}

// ReadPoisFromFile reads a list of POIs. JSON input is accepted as YAML.
func ReadPoisFromFile(path string) ([]model.Poi, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read file")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var list []model.Poi
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped poiFile
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, eris.Wrapf(err, "batch: parse %s", path)
	}
	return wrapped.Pois, nil
}
