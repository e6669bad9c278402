// Package cache implements the two-tier enrichment cache: a quota-bounded
// local tier and a best-effort remote tier.
package cache

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/ppiankov/poisignal/internal/model"
)

// Kinds of cached synthesis output
const (
	KindShort   = "short"
	KindFull    = "full"
	KindArrival = "arrival"
	KindWelcome = "welcome"
)

// Version is written into every local entry
const Version = "1.0"

// ErrQuotaExceeded is returned by a Store that has no room for a value
var ErrQuotaExceeded = errors.New("cache: quota exceeded")

// Store is the raw byte storage behind the local tier
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
	Keys() []string
}

// Entry is the stored envelope of a local cache value
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // Unix milliseconds
	Version   string          `json:"version"`
}

// Key builds the cache key kind_identity_language[_variant]
func Key(kind, identity, language, variant string) string {
	parts := []string{kind, identity, strings.ToLower(language)}
	if variant != "" {
		parts = append(parts, variant)
	}
	return strings.Join(parts, "_")
}

// KeyFor builds the key of a POI for the given kind
func KeyFor(kind string, poi model.Poi, defaultLanguage string) string {
	return Key(kind, poi.Identity(), poi.Lang(defaultLanguage), poi.Variant())
}
