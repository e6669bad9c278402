package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/poisignal/internal/model"
)

// mockEnricher implements Enricher
type mockEnricher struct {
	shouldError bool
	mu          sync.Mutex
	calls       map[string]int
}

func (m *mockEnricher) Enrich(ctx context.Context, poi model.Poi) (*model.Enrichment, error) {
	time.Sleep(5 * time.Millisecond)
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[poi.Identity()]++
	m.mu.Unlock()

	if m.shouldError {
		return nil, errors.New("enrich error")
	}
	return &model.Enrichment{Poi: poi, State: model.StateDone}, nil
}

func TestBatchProcessor_ProcessPois(t *testing.T) {
	enricher := &mockEnricher{}
	processor := NewBatchProcessor(enricher, 2, "en")

	pois := []model.Poi{
		{Name: "Stadhuis", Lat: 50.93, Lng: 5.34},
		{Name: "Het Stadsmus", Lat: 50.93, Lng: 5.33},
		{Name: "Beiaardmuseum", Lat: 50.93, Lng: 5.35},
	}

	results := processor.ProcessPois(context.Background(), pois)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Poi.Name, res.Error)
		}
		if res.Enrichment == nil {
			t.Errorf("expected enrichment for %s", res.Poi.Name)
		}
		if res.Poi.Name != pois[i].Name {
			t.Errorf("expected results in input order, got %s at %d", res.Poi.Name, i)
		}
	}
}

func TestBatchProcessor_DuplicatesEnrichedOnce(t *testing.T) {
	enricher := &mockEnricher{}
	processor := NewBatchProcessor(enricher, 4, "en")

	pois := []model.Poi{
		{Name: "Stadhuis"},
		{Name: "stadhuis (Hasselt)"},
		{Name: "City Hall"},
		{Name: "Stadhuis", Language: "nl"},
	}

	results := processor.ProcessPois(context.Background(), pois)
	if len(results) != 2 {
		t.Fatalf("expected 2 results after dedupe, got %d", len(results))
	}
	if enricher.calls["city-hall"] != 2 {
		t.Errorf("expected one call per language, got %d", enricher.calls["city-hall"])
	}
}

func TestBatchProcessor_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockEnricher{shouldError: true}, 2, "en")

	results := processor.ProcessPois(context.Background(), []model.Poi{{Name: "x"}})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Enrichment != nil {
		t.Error("expected nil enrichment on error")
	}
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockEnricher{}, 2, "en")
	if results := processor.ProcessPois(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPoisFromFile_YAMLList(t *testing.T) {
	path := writeTemp(t, "pois.yaml", `
- name: Stadhuis
  lat: 50.9307
  lng: 5.3378
  city: Hasselt
  language: nl
- name: Het Stadsmus
  lat: 50.929
  lng: 5.336
`)
	pois, err := ReadPoisFromFile(path)
	if err != nil {
		t.Fatalf("ReadPoisFromFile failed: %v", err)
	}
	if len(pois) != 2 {
		t.Fatalf("expected 2 POIs, got %d", len(pois))
	}
	if pois[0].City != "Hasselt" || pois[0].Language != "nl" || pois[0].Lat != 50.9307 {
		t.Errorf("unexpected first POI: %+v", pois[0])
	}
}

func TestReadPoisFromFile_WrappedJSON(t *testing.T) {
	path := writeTemp(t, "pois.json", `{"pois": [{"name": "Beiaardmuseum", "lat": 50.93, "lng": 5.35, "interests": ["music"]}]}`)
	pois, err := ReadPoisFromFile(path)
	if err != nil {
		t.Fatalf("ReadPoisFromFile failed: %v", err)
	}
	if len(pois) != 1 || pois[0].Name != "Beiaardmuseum" || len(pois[0].Interests) != 1 {
		t.Errorf("unexpected POIs: %+v", pois)
	}
}

func TestReadPoisFromFile_Empty(t *testing.T) {
	pois, err := ReadPoisFromFile(writeTemp(t, "empty.yaml", "  \n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pois) != 0 {
		t.Errorf("expected no POIs, got %d", len(pois))
	}
}

func TestReadPoisFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPoisFromFile("no_such_file.yaml"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "pois.yaml", "- name: A\n- name: B\n- name: A\n")
	processor := NewBatchProcessor(&mockEnricher{}, 2, "en")

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}
