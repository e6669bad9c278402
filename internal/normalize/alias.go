package normalize

import (
	"sort"
	"strings"
)

// aliases maps local-language words to the canonical form used across
// providers. Keys and values must already be in folded form; values must not
// contain any key as a word, so substitution stays idempotent.
var aliases = map[string]string{
	"stadhuis":       "city hall",
	"raadhuis":       "city hall",
	"hotel de ville": "city hall",
	"rathaus":        "city hall",
	"gemeentehuis":   "city hall",
	"kerk":           "church",
	"kathedraal":     "cathedral",
	"basiliek":       "basilica",
	"kapel":          "chapel",
	"abdij":          "abbey",
	"kasteel":        "castle",
	"burcht":         "castle",
	"musee":          "museum",
	"stadsmuseum":    "city museum",
	"molen":          "mill",
	"toren":          "tower",
	"belfort":        "belfry",
	"beiaard":        "carillon",
	"markt":          "market square",
	"grote markt":    "market square",
	"brug":           "bridge",
	"poort":          "gate",
	"begijnhof":      "beguinage",
	"st":             "saint",
	"sint":           "saint",
}

// aliasPhrases is the alias table split into word slices, longest first, so
// that multi-word keys win over their single-word parts.
var aliasPhrases = buildPhrases()

type phrase struct {
	words       []string
	replacement []string
}

func buildPhrases() []phrase {
	out := make([]phrase, 0, len(aliases))
	for k, v := range aliases {
		out = append(out, phrase{words: strings.Fields(k), replacement: strings.Fields(v)})
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func less(a, b phrase) bool {
	if len(a.words) != len(b.words) {
		return len(a.words) > len(b.words)
	}
	return strings.Join(a.words, " ") < strings.Join(b.words, " ")
}

// applyAliases performs whole-word substitution in a single left-to-right pass
func applyAliases(folded string) string {
	words := strings.Fields(folded)
	out := make([]string, 0, len(words))
	for i := 0; i < len(words); {
		matched := false
		for _, p := range aliasPhrases {
			if i+len(p.words) > len(words) || !equalWords(words[i:i+len(p.words)], p.words) {
				continue
			}
			out = append(out, p.replacement...)
			i += len(p.words)
			matched = true
			break
		}
		if !matched {
			out = append(out, words[i])
			i++
		}
	}
	return strings.Join(out, " ")
}

func equalWords(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
