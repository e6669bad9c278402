package provider

import (
	"net/url"
	"strings"
)

// RuleKind selects how an ImageRule pattern is matched
type RuleKind string

const (
	RuleSubstring RuleKind = "substring" // anywhere in the lowercased URL
	RuleDomain    RuleKind = "domain"    // host equals or is a subdomain of Pattern
)

// ImageRule rejects an image URL when it matches
type ImageRule struct {
	Kind    RuleKind
	Pattern string
}

// DefaultImageRules rejects branding, people and third-party platform imagery
var DefaultImageRules = []ImageRule{
	{RuleSubstring, "logo"},
	{RuleSubstring, "icon"},
	{RuleSubstring, "placeholder"},
	{RuleSubstring, "avatar"},
	{RuleSubstring, "favicon"},
	{RuleSubstring, "profile"},
	{RuleSubstring, "user"},
	{RuleSubstring, "author"},
	{RuleSubstring, "member"},
	{RuleSubstring, "review"},
	{RuleSubstring, "testimonial"},

	// app stores
	{RuleDomain, "apps.apple.com"},
	{RuleDomain, "play.google.com"},
	{RuleDomain, "is1-ssl.mzstatic.com"},

	// social networks
	{RuleDomain, "facebook.com"},
	{RuleDomain, "fbcdn.net"},
	{RuleDomain, "instagram.com"},
	{RuleDomain, "cdninstagram.com"},
	{RuleDomain, "twitter.com"},
	{RuleDomain, "twimg.com"},
	{RuleDomain, "x.com"},
	{RuleDomain, "linkedin.com"},
	{RuleDomain, "licdn.com"},
	{RuleDomain, "tiktok.com"},
	{RuleDomain, "pinterest.com"},
	{RuleDomain, "pinimg.com"},

	// booking and review aggregators
	{RuleDomain, "tripadvisor.com"},
	{RuleDomain, "tacdn.com"},
	{RuleDomain, "booking.com"},
	{RuleDomain, "bstatic.com"},
	{RuleDomain, "expedia.com"},
	{RuleDomain, "hotels.com"},
	{RuleDomain, "yelp.com"},
	{RuleDomain, "airbnb.com"},
	{RuleDomain, "muscache.com"},
	{RuleDomain, "getyourguide.com"},
	{RuleDomain, "viator.com"},
}

// AllowImage reports whether url passes DefaultImageRules
func AllowImage(rawURL string) bool {
	return AllowImageWith(rawURL, DefaultImageRules)
}

// AllowImageWith evaluates rawURL against rules
func AllowImageWith(rawURL string, rules []ImageRule) bool {
	lower := strings.ToLower(strings.TrimSpace(rawURL))
	if lower == "" {
		return false
	}
	host := ""
	if u, err := url.Parse(lower); err == nil {
		host = strings.TrimPrefix(u.Hostname(), "www.")
	}

	for _, r := range rules {
		switch r.Kind {
		case RuleSubstring:
			if strings.Contains(lower, r.Pattern) {
				return false
			}
		case RuleDomain:
			if host != "" && (host == r.Pattern || strings.HasSuffix(host, "."+r.Pattern)) {
				return false
			}
		}
	}
	return true
}

// FilterImages keeps allowed URLs, dropping duplicates
func FilterImages(urls []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, u := range urls {
		if seen[u] || !AllowImage(u) {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
