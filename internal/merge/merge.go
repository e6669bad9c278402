// Package merge reduces scored signals to a bounded payload for synthesis and
// to a single best answer when synthesis is unavailable.
package merge

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/poisignal/internal/model"
	"github.com/ppiankov/poisignal/internal/normalize"
)

// Payload bounds
const (
	MaxCandidates      = 5
	MaxCandidateChars  = 600
	MaxImages          = 3
	MaxFacts           = 4
	MaxFactChars       = 200
	fingerprintChars   = 80
	candidateThreshold = 0.4
	imageThreshold     = 0.85
	websiteThreshold   = 0.8
	factThreshold      = 0.7
)

// Category hints
const (
	CategoryOfficialWebsite = "official_website"
	CategoryWikipedia       = "wikipedia_verified"
	CategoryOSM             = "osm_verified"
	CategoryArchived        = "locally_archived"
)

// referenceHosts link to pages about the POI, never to the POI's own site
var referenceHosts = []string{"wikipedia.org", "wikidata.org", "duckduckgo.com", "wikimedia.org"}

// Merge builds the bounded payload from scored signals. entity may be nil.
func Merge(signals []model.ScoredSignal, entity *model.CanonicalEntity) model.MergedPayload {
	ranked := rank(signals)
	payload := model.MergedPayload{
		DescriptionCandidates: []model.DescriptionCandidate{},
		Categories:            []string{},
		Images:                []string{},
		Facts:                 []string{},
	}

	seen := make(map[string]bool)
	for _, s := range ranked {
		if len(payload.DescriptionCandidates) == MaxCandidates {
			break
		}
		if s.Score < candidateThreshold || strings.TrimSpace(s.Content) == "" {
			continue
		}
		fp := Fingerprint(s.Content)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		payload.DescriptionCandidates = append(payload.DescriptionCandidates, model.DescriptionCandidate{
			Text:   truncate(s.Content, MaxCandidateChars),
			Source: s.Source,
			Score:  s.Score,
		})
	}

	for _, s := range ranked {
		if s.Score < imageThreshold {
			continue
		}
		for _, img := range s.AllImages() {
			payload.Images = appendUnique(payload.Images, img, MaxImages)
		}
	}
	if entity != nil && entity.Image != "" {
		payload.Images = appendUnique(payload.Images, entity.Image, MaxImages)
	}

	payload.Website = website(ranked, entity)
	payload.Categories = categories(ranked, entity)

	factSeen := make(map[string]bool)
	for _, s := range ranked {
		if len(payload.Facts) == MaxFacts {
			break
		}
		text := strings.TrimSpace(s.Content)
		if s.Score < factThreshold || text == "" || len([]rune(text)) >= MaxFactChars || factSeen[text] {
			continue
		}
		factSeen[text] = true
		payload.Facts = append(payload.Facts, text)
	}

	return payload
}

// Fingerprint is the first 80 characters of the folded text, used to detect
// the same description arriving from different providers
func Fingerprint(text string) string {
	return truncate(normalize.Text(text), fingerprintChars)
}

func website(ranked []model.ScoredSignal, entity *model.CanonicalEntity) string {
	for _, s := range ranked {
		if s.Type == model.SignalOfficialSite && s.Link != "" {
			return s.Link
		}
	}
	for _, s := range ranked {
		if s.Score >= websiteThreshold && s.Link != "" && !isReferenceLink(s.Link) {
			return s.Link
		}
	}
	if entity != nil {
		return entity.Website
	}
	return ""
}

func categories(ranked []model.ScoredSignal, entity *model.CanonicalEntity) []string {
	has := make(map[string]bool)
	for _, s := range ranked {
		switch {
		case s.Type == model.SignalOfficialSite:
			has[CategoryOfficialWebsite] = true
		case s.Source == model.SourceWikipedia:
			has[CategoryWikipedia] = true
		case s.Source == model.SourceOverpass:
			has[CategoryOSM] = true
		case s.Source == model.SourceArchive:
			has[CategoryArchived] = true
		}
	}

	out := []string{}
	for _, c := range []string{CategoryOfficialWebsite, CategoryWikipedia, CategoryOSM, CategoryArchived} {
		if has[c] {
			out = append(out, c)
		}
	}
	if entity != nil {
		for _, id := range entity.Categories {
			out = appendUnique(out, "wikidata:"+id, 0)
		}
	}
	return out
}

func rank(signals []model.ScoredSignal) []model.ScoredSignal {
	ranked := append([]model.ScoredSignal(nil), signals...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func isReferenceLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range referenceHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// appendUnique appends v when absent and the list is below max (0 = unbounded)
func appendUnique(list []string, v string, max int) []string {
	if v == "" || (max > 0 && len(list) >= max) {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
