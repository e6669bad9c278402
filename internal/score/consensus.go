package score

import (
	"strings"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// Edge weights of the agreement graph
const (
	weightBothNamed     = 0.4
	weightSharedKind    = 0.3
	weightSimilarity    = 0.3
	similarityPrefix    = 300
	similarityMinLength = 40
)

// CategoryKeywords are compared after alias folding, so "kerk" counts as church
var CategoryKeywords = []string{
	"museum", "church", "cathedral", "basilica", "chapel", "abbey", "castle",
	"tower", "belfry", "mill", "bridge", "gate", "city hall", "market square",
	"park", "garden", "monument", "statue", "theatre", "library", "beguinage",
	"brewery", "zoo", "square",
}

// Graph is the symmetric agreement matrix between signals. The diagonal is
// always zero.
type Graph struct {
	Weights [][]float64
}

// BuildGraph computes pairwise agreement for the signals of one POI
func BuildGraph(poi model.Poi, signals []model.Signal) Graph {
	n := len(signals)
	name := normalize.PoiName(poi.Name)

	type features struct {
		named bool
		kinds map[string]bool
		text  string
	}
	fs := make([]features, n)
	for i, sig := range signals {
		fs[i] = features{
			named: normalize.Contains(sig.Content, name),
			kinds: categories(sig.Content),
			text:  sig.Content,
		}
	}

	w := make([][]float64, n)
	for i := range w {
		w[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var weight float64
			if fs[i].named && fs[j].named {
				weight += weightBothNamed
			}
			if sharesKey(fs[i].kinds, fs[j].kinds) {
				weight += weightSharedKind
			}
			if len(fs[i].text) > similarityMinLength && len(fs[j].text) > similarityMinLength {
				weight += weightSimilarity * Jaccard(fs[i].text, fs[j].text)
			}
			weight = clamp(weight)
			w[i][j] = weight
			w[j][i] = weight
		}
	}
	return Graph{Weights: w}
}

// Centrality is the normalized weighted degree of node i: row sum / (n-1)
func (g Graph) Centrality(i int) float64 {
	n := len(g.Weights)
	if n < 2 || i < 0 || i >= n {
		return 0
	}
	var sum float64
	for _, v := range g.Weights[i] {
		sum += v
	}
	return sum / float64(n-1)
}

// Jaccard is the character-bigram Jaccard similarity of the lowercased first
// 300 characters of a and b
func Jaccard(a, b string) float64 {
	ba, bb := bigrams(a), bigrams(b)
	if len(ba) == 0 && len(bb) == 0 {
		return 0
	}
	var inter int
	for g := range ba {
		if bb[g] {
			inter++
		}
	}
	union := len(ba) + len(bb) - inter
	return float64(inter) / float64(union)
}

func bigrams(s string) map[string]bool {
	r := []rune(strings.ToLower(s))
	if len(r) > similarityPrefix {
		r = r[:similarityPrefix]
	}
	out := make(map[string]bool, len(r))
	for i := 0; i+1 < len(r); i++ {
		out[string(r[i:i+2])] = true
	}
	return out
}

func categories(text string) map[string]bool {
	if text == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, k := range CategoryKeywords {
		if normalize.Contains(text, k) {
			out[k] = true
		}
	}
	return out
}

func sharesKey(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}
