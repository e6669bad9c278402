package model

import (
	"strings"

	"github.com/ppiankov/poisignal/internal/normalize"
)

// Poi is a point-of-interest candidate handed to the enrichment engine.
// It is treated as immutable for the duration of one enrichment pass.
type Poi struct {
	ID           string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name         string   `json:"name" yaml:"name"`
	Lat          float64  `json:"lat" yaml:"lat"`
	Lng          float64  `json:"lng" yaml:"lng"`
	Language     string   `json:"language,omitempty" yaml:"language,omitempty"`           // "nl", "en", ... (defaults to config language)
	Interests    []string `json:"interests,omitempty" yaml:"interests,omitempty"`         // Traveller interests, used as cache variant
	City         string   `json:"city,omitempty" yaml:"city,omitempty"`                   // City context for searches
	Road         string   `json:"road,omitempty" yaml:"road,omitempty"`                   // Street, used by retry searches
	RouteContext string   `json:"route_context,omitempty" yaml:"route_context,omitempty"` // Free-form trip context for synthesis prompts
}

// Lang returns the POI language or the fallback when unset
func (p Poi) Lang(fallback string) string {
	if p.Language != "" {
		return strings.ToLower(p.Language)
	}
	if fallback == "" {
		return "en"
	}
	return fallback
}

// Identity returns the cache identity: the ID when set, otherwise the
// normalized name with spaces replaced by hyphens.
func (p Poi) Identity() string {
	if id := strings.TrimSpace(p.ID); id != "" {
		return id
	}
	return strings.ReplaceAll(normalize.PoiName(p.Name), " ", "-")
}

// Variant returns the cache variant derived from the interests list
func (p Poi) Variant() string {
	if len(p.Interests) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.Interests))
	for _, i := range p.Interests {
		i = strings.ToLower(strings.TrimSpace(i))
		if i != "" {
			parts = append(parts, i)
		}
	}
	return strings.Join(parts, "-")
}

// CanonicalEntity is the Wikidata-resolved identity of a POI
type CanonicalEntity struct {
	ID           string   `json:"id"`                      // Q-id, e.g. "Q12345"
	Name         string   `json:"name"`                    // Label in the requested language (falls back to en)
	Aliases      []string `json:"aliases,omitempty"`       // Alternative labels
	WikipediaURL string   `json:"wikipedia_url,omitempty"` // Sitelink for {lang}wiki
	Website      string   `json:"website,omitempty"`       // P856
	Image        string   `json:"image,omitempty"`         // P18 as a Commons file URL
	Categories   []string `json:"categories,omitempty"`    // P31 Q-ids
}
