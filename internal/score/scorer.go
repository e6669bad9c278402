// Package score assigns trust scores to provider signals: a per-signal
// heuristic pass followed by a cross-source consensus pass.
package score

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// TagListRatio is how many comma-separated items per sentence make content
// read as a bare tag list ("Museum, Building, Point of Interest").
const TagListRatio = 2

const (
	defaultScore   = 0.5
	officialScore  = 0.95
	genericCeiling = 0.1
	searchFloor    = 0.9
	tagListScore   = 0.2
	consensusBoost = 0.3
)

// Scorer scores the signals gathered for one POI
type Scorer struct {
	city string
}

// NewScorer creates a scorer. city is the default city used to detect
// generic city-level statements when a POI carries none.
func NewScorer(city string) *Scorer {
	return &Scorer{city: city}
}

// Score runs both passes and returns the signals sorted by descending score.
// Every score is in [0, 1].
func (s *Scorer) Score(poi model.Poi, signals []model.Signal) []model.ScoredSignal {
	if len(signals) == 0 {
		return nil
	}

	// 1. Heuristic pass
	scored := make([]model.ScoredSignal, len(signals))
	for i, sig := range signals {
		scored[i] = model.ScoredSignal{Signal: sig, Score: s.Heuristic(poi, sig)}
	}

	// 2. Consensus pass
	graph := BuildGraph(poi, signals)
	for i := range scored {
		c := graph.Centrality(i)
		scored[i].GraphCentrality = c
		scored[i].Score = clamp(scored[i].Score + c*consensusBoost)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return scored
}

// Heuristic returns the first-pass score of one signal
func (s *Scorer) Heuristic(poi model.Poi, sig model.Signal) float64 {
	score := sig.Confidence
	if score == 0 {
		score = defaultScore
	}

	name := normalize.PoiName(poi.Name)
	text := strings.ToLower(sig.Content)
	mentionsName := normalize.Contains(sig.Content, name)

	// Official-site heuristic: the link's domain carries the POI name
	if IsLikelyOfficialLink(poi.Name, sig.Link) {
		score = officialScore
	}

	// Generic city-level statement that never names the POI
	if text != "" && !mentionsName && s.isGenericCity(poi, text) {
		score = min(score, genericCeiling)
	}

	if sig.Source == model.SourceWebSearch && mentionsName {
		score = max(score, searchFloor)
	}

	if text != "" && isTagList(text) {
		score = tagListScore
	}

	return clamp(score)
}

func (s *Scorer) isGenericCity(poi model.Poi, text string) bool {
	city := poi.City
	if city == "" {
		city = s.city
	}
	if city != "" && strings.Contains(text, strings.ToLower(city)+" is") {
		return true
	}
	for _, marker := range []string{"capital", "hoofdstad", "province", "provincie"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// isTagList flags content with no spaces or with many more comma-separated
// items than sentences
func isTagList(text string) bool {
	if !strings.Contains(text, " ") {
		return true
	}
	commas := strings.Count(text, ",")
	periods := strings.Count(text, ".")
	return commas+1 > TagListRatio*(periods+1)
}

// IsLikelyOfficialLink reports whether the link's host contains the compacted
// POI name, or every significant word of it.
func IsLikelyOfficialLink(poiName, link string) bool {
	if poiName == "" || link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())

	// try both the literal name and its aliased form
	for _, n := range []string{normalize.Text(normalize.CleanName(poiName)), normalize.PoiName(poiName)} {
		if n == "" {
			continue
		}
		if strings.Contains(host, normalize.Compact(n)) {
			return true
		}
		frags := normalize.Fragments(n, 3)
		if len(frags) == 0 {
			continue
		}
		all := true
		for _, f := range frags {
			if !strings.Contains(host, f) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
