// Package normalize canonicalizes POI names and free text so that signals from
// different providers can be compared.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	whitespace    = regexp.MustCompile(`\s+`)
)

// PoiName returns the canonical form of a display name: lower case, diacritics
// stripped, parentheticals removed, punctuation collapsed to single spaces and
// aliases substituted word by word. PoiName(PoiName(x)) == PoiName(x).
func PoiName(name string) string {
	folded := Text(parenthetical.ReplaceAllString(name, " "))
	if folded == "" {
		return ""
	}
	return applyAliases(folded)
}

// Text folds arbitrary text the same way PoiName does, without alias
// substitution and without removing parentheticals.
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = stripDiacritics(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(b.String(), " "))
}

// CleanName strips parenthetical suffixes but keeps casing and punctuation.
// Used to build human-readable search queries.
func CleanName(name string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(parenthetical.ReplaceAllString(name, " "), " "))
}

// Compact removes all spaces from a normalized name ("city hall" -> "cityhall"),
// the form used for domain matching.
func Compact(normalized string) string {
	return strings.ReplaceAll(normalized, " ", "")
}

// Fragments returns the words of a normalized name longer than minLen runes
func Fragments(normalized string, minLen int) []string {
	var out []string
	for _, f := range strings.Fields(normalized) {
		if len([]rune(f)) > minLen {
			out = append(out, f)
		}
	}
	return out
}

// Contains reports whether the folded form of text contains the normalized name
// as a whole-word sequence.
func Contains(text, normalizedName string) bool {
	if normalizedName == "" {
		return false
	}
	hay := " " + applyAliases(Text(text)) + " "
	return strings.Contains(hay, " "+normalizedName+" ")
}

func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
