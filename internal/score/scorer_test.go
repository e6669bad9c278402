package score

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/poisignal/internal/model"
)

var cityHall = model.Poi{Name: "City Hall", Lat: 50.93, Lng: 5.34}

func TestScorer_CityHallScenario(t *testing.T) {
	wiki := model.Signal{
		Type:       model.SignalDescription,
		Source:     model.SourceWikipedia,
		Content:    "The City Hall of Hasselt is a 17th-century building on the market square. It houses the city council.",
		Link:       "https://en.wikipedia.org/?curid=1",
		Confidence: 0.95,
	}
	osm := model.Signal{
		Type:       model.SignalLinkOnly,
		Source:     model.SourceOverpass,
		Link:       "https://www.cityhall-hasselt.be/",
		Confidence: 0.8,
	}

	scored := NewScorer("Hasselt").Score(cityHall, []model.Signal{wiki, osm})
	require.Len(t, scored, 2)

	for _, s := range scored {
		assert.GreaterOrEqual(t, s.Score, 0.95, s.Source)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
	assert.Equal(t, model.SourceWikipedia, scored[0].Source)
}

func TestHeuristic(t *testing.T) {
	s := NewScorer("Hasselt")

	tests := []struct {
		name string
		poi  model.Poi
		sig  model.Signal
		want float64
	}{
		{
			name: "default when confidence unset",
			poi:  model.Poi{Name: "Japanse Tuin"},
			sig:  model.Signal{Content: "A quiet garden with ponds and bridges."},
			want: 0.5,
		},
		{
			name: "official domain by compacted name",
			poi:  model.Poi{Name: "Het Volkstehuis"},
			sig:  model.Signal{Link: "https://www.hetvolkstehuis.be", Confidence: 0.8},
			want: 0.95,
		},
		{
			name: "official domain by fragments",
			poi:  model.Poi{Name: "Japanse Tuin Hasselt"},
			sig:  model.Signal{Link: "https://japanse-tuin.hasselt.be/info", Confidence: 0.6},
			want: 0.95,
		},
		{
			name: "generic city statement",
			poi:  model.Poi{Name: "Kapermolenpark"},
			sig:  model.Signal{Content: "Hasselt is the capital of the province of Limburg.", Confidence: 0.95},
			want: 0.1,
		},
		{
			name: "generic marker but names the poi",
			poi:  model.Poi{Name: "Provinciehuis"},
			sig:  model.Signal{Content: "Het Provinciehuis is the seat of the provincie Limburg.", Confidence: 0.7},
			want: 0.7,
		},
		{
			name: "web search mentioning the name",
			poi:  model.Poi{Name: "Japanse Tuin"},
			sig:  model.Signal{Source: model.SourceWebSearch, Content: "[Link: x] De Japanse Tuin is open from April.", Confidence: 0.75},
			want: 0.9,
		},
		{
			name: "tag list",
			poi:  model.Poi{Name: "Stadsmus"},
			sig:  model.Signal{Content: "Museum, Building, Point of Interest, Tourism, Culture", Confidence: 0.7},
			want: 0.2,
		},
		{
			name: "single token is a tag list",
			poi:  model.Poi{Name: "Stadsmus"},
			sig:  model.Signal{Content: "museum", Confidence: 0.7},
			want: 0.2,
		},
		{
			name: "link only keeps confidence",
			poi:  model.Poi{Name: "Stadsmus"},
			sig:  model.Signal{Type: model.SignalLinkOnly, Link: "https://example.org", Confidence: 0.8},
			want: 0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, s.Heuristic(tt.poi, tt.sig), 1e-9)
		})
	}
}

func TestScoresAlwaysInRange(t *testing.T) {
	poi := model.Poi{Name: "Sint-Quintinuskathedraal"}
	text := "De Sint-Quintinuskathedraal is de kathedraal van Hasselt, een kerk met een hoge toren."
	var signals []model.Signal
	for i := 0; i < 6; i++ {
		signals = append(signals, model.Signal{
			Source:     model.SourceWebSearch,
			Content:    text,
			Link:       "https://sint-quintinuskathedraal.be",
			Confidence: 1,
		})
	}

	scored := NewScorer("Hasselt").Score(poi, signals)
	require.Len(t, scored, 6)
	for _, s := range scored {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
		assert.GreaterOrEqual(t, s.GraphCentrality, 0.0)
		assert.LessOrEqual(t, s.GraphCentrality, 1.0)
	}
}

func TestScoreSortedDescending(t *testing.T) {
	signals := []model.Signal{
		{Source: "a", Content: "Museum, Art, Culture, Tourism", Confidence: 0.9},
		{Source: "b", Content: "The Stadsmus tells the story of Hasselt and its people.", Confidence: 0.7},
		{Source: "c", Content: "A city museum in an old mansion.", Confidence: 0.8},
	}
	scored := NewScorer("Hasselt").Score(model.Poi{Name: "Stadsmus"}, signals)
	for i := 1; i < len(scored); i++ {
		assert.GreaterOrEqual(t, scored[i-1].Score, scored[i].Score)
	}
	assert.Nil(t, NewScorer("").Score(model.Poi{Name: "x"}, nil))
}

func TestBuildGraph(t *testing.T) {
	poi := model.Poi{Name: "Stadsmus"}
	signals := []model.Signal{
		{Content: "Het Stadsmus is het stedelijk museum van Hasselt, in een herenhuis."},
		{Content: "Het Stadsmus is het stedelijk museum van Hasselt, in een oud herenhuis."},
		{Content: "Totally unrelated."},
	}
	g := BuildGraph(poi, signals)

	for i := range g.Weights {
		assert.Zero(t, g.Weights[i][i])
		for j := range g.Weights {
			assert.Equal(t, g.Weights[i][j], g.Weights[j][i])
			assert.GreaterOrEqual(t, g.Weights[i][j], 0.0)
			assert.LessOrEqual(t, g.Weights[i][j], 1.0)
		}
	}

	// named + museum + near-identical text
	assert.Greater(t, g.Weights[0][1], 0.95)
	assert.Zero(t, g.Weights[0][2])
	assert.InDelta(t, g.Weights[0][1]/2, g.Centrality(0), 1e-9)
	assert.Zero(t, Graph{Weights: [][]float64{{0}}}.Centrality(0))
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, Jaccard("abcdef", "ABCDEF"), 1e-9)
	assert.Zero(t, Jaccard("abc", "xyz"))
	assert.Zero(t, Jaccard("", ""))

	// only the first 300 characters count
	prefix := make([]rune, 300)
	for i := range prefix {
		prefix[i] = rune('a' + i%26)
	}
	a := string(prefix) + "tail one"
	b := string(prefix) + "completely different ending"
	assert.False(t, math.IsNaN(Jaccard(a, b)))
	assert.InDelta(t, 1.0, Jaccard(a, b), 1e-9)
}

func TestIsLikelyOfficialLink(t *testing.T) {
	assert.True(t, IsLikelyOfficialLink("Stadhuis", "https://stadhuis-hasselt.be"))
	assert.True(t, IsLikelyOfficialLink("Stadhuis", "https://www.cityhall.example"))
	assert.False(t, IsLikelyOfficialLink("Stadhuis", "https://nl.wikipedia.org/wiki/Stadhuis"))
	assert.False(t, IsLikelyOfficialLink("", "https://x.be"))
	assert.False(t, IsLikelyOfficialLink("Stadsmus", "not a url"))
}
