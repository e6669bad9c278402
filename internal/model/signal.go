package model

// Signal is one piece of evidence about a POI from a single provider.
// Confidence is provider-intrinsic and never changes after creation.
type Signal struct {
	Type       SignalType `json:"type"`
	Source     string     `json:"source"`            // Provider name, e.g. "wikipedia"
	Content    string     `json:"content,omitempty"` // Empty means no content
	Link       string     `json:"link,omitempty"`
	Image      string     `json:"image,omitempty"`
	Images     []string   `json:"images,omitempty"`
	Confidence float64    `json:"confidence"` // 0.0 - 1.0
}

// SignalType classifies what a signal carries
type SignalType string

const (
	SignalDescription  SignalType = "description"   // Descriptive text
	SignalLinkOnly     SignalType = "link_only"     // Only a URL, no usable text
	SignalOfficialSite SignalType = "official_site" // Metadata scraped from the POI's own website
)

// Provider source names
const (
	SourceArchive      = "local_archive"
	SourceWikipedia    = "wikipedia"
	SourceDuckDuckGo   = "duckduckgo"
	SourceOverpass     = "overpass"
	SourceOfficialSite = "official_site"
	SourceWebSearch    = "web_search"
	SourceWikidata     = "wikidata"
	SourceSystem       = "system"
)

// AllImages returns Image followed by Images, without duplicates
func (s Signal) AllImages() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	add(s.Image)
	for _, u := range s.Images {
		add(u)
	}
	return out
}

// ScoredSignal is a Signal annotated with its trust score
type ScoredSignal struct {
	Signal
	Score           float64 `json:"score"`            // Final trust score (0.0 - 1.0)
	GraphCentrality float64 `json:"graph_centrality"` // Normalized weighted degree in the consensus graph (0.0 - 1.0)
}

// ProviderResult is the outcome of one provider call. A nil Signal with a nil
// Err means the provider had nothing to say.
type ProviderResult struct {
	Provider string
	Signal   *Signal
	Err      error
}
