package model

import "time"

// Config is the complete runtime configuration
type Config struct {
	Language     string            `json:"language" yaml:"language" mapstructure:"language"` // Default POI language
	City         string            `json:"city" yaml:"city" mapstructure:"city"`             // Default city context
	HTTP         HTTPConfig        `json:"http" yaml:"http" mapstructure:"http"`
	RateLimiting RateLimitConfig   `json:"rate_limiting" yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Concurrency  ConcurrencyConfig `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	Providers    ProvidersConfig   `json:"providers" yaml:"providers" mapstructure:"providers"`
	Cache        CacheConfig       `json:"cache" yaml:"cache" mapstructure:"cache"`
	LLM          LLMConfig         `json:"llm" yaml:"llm" mapstructure:"llm"`
	Log          LogConfig         `json:"log" yaml:"log" mapstructure:"log"`
	CacheServer  CacheServerConfig `json:"cache_server" yaml:"cache_server" mapstructure:"cache_server"`
}

// HTTPConfig holds shared HTTP client settings
type HTTPConfig struct {
	Timeout      time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `json:"max_body_bytes" yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `json:"http_proxy,omitempty" yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `json:"https_proxy,omitempty" yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `json:"no_proxy,omitempty" yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// RateLimitConfig controls per-host request pacing
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `json:"burst" yaml:"burst" mapstructure:"burst"`
}

// ConcurrencyConfig controls batch enrichment
type ConcurrencyConfig struct {
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// ProvidersConfig groups per-provider settings
type ProvidersConfig struct {
	Wikipedia  WikipediaConfig  `json:"wikipedia" yaml:"wikipedia" mapstructure:"wikipedia"`
	Overpass   OverpassConfig   `json:"overpass" yaml:"overpass" mapstructure:"overpass"`
	DuckDuckGo DuckDuckGoConfig `json:"duckduckgo" yaml:"duckduckgo" mapstructure:"duckduckgo"`
	WebSearch  WebSearchConfig  `json:"web_search" yaml:"web_search" mapstructure:"web_search"`
	Wikidata   WikidataConfig   `json:"wikidata" yaml:"wikidata" mapstructure:"wikidata"`
	Scraper    ScraperConfig    `json:"scraper" yaml:"scraper" mapstructure:"scraper"`
	Archive    ArchiveConfig    `json:"archive" yaml:"archive" mapstructure:"archive"`
}

type WikipediaConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	APIURL  string        `json:"api_url" yaml:"api_url" mapstructure:"api_url"` // %s is replaced by the language code
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

type OverpassConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Mirrors        []string      `json:"mirrors" yaml:"mirrors" mapstructure:"mirrors"`
	RadiusMeters   int           `json:"radius_meters" yaml:"radius_meters" mapstructure:"radius_meters"`
	AttemptTimeout time.Duration `json:"attempt_timeout" yaml:"attempt_timeout" mapstructure:"attempt_timeout"`
	MaxJitter      time.Duration `json:"max_jitter" yaml:"max_jitter" mapstructure:"max_jitter"`
}

type DuckDuckGoConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	BaseURL string        `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// WebSearchConfig configures the primary/fallback search backends.
// AlwaysSearch is the feature flag that disables the conditional skip.
type WebSearchConfig struct {
	Enabled           bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	AlwaysSearch      bool          `json:"always_search" yaml:"always_search" mapstructure:"always_search"`
	PrimaryURL        string        `json:"primary_url" yaml:"primary_url" mapstructure:"primary_url"`
	PrimaryAPIKey     string        `json:"primary_api_key,omitempty" yaml:"primary_api_key,omitempty" mapstructure:"primary_api_key"`
	FallbackURL       string        `json:"fallback_url" yaml:"fallback_url" mapstructure:"fallback_url"`
	FallbackAPIKey    string        `json:"fallback_api_key,omitempty" yaml:"fallback_api_key,omitempty" mapstructure:"fallback_api_key"`
	Timeout           time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxResults        int           `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
	DegradeThreshold  int           `json:"degrade_threshold" yaml:"degrade_threshold" mapstructure:"degrade_threshold"`
	QuotaPollInterval time.Duration `json:"quota_poll_interval" yaml:"quota_poll_interval" mapstructure:"quota_poll_interval"`
}

type WikidataConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	APIURL  string        `json:"api_url" yaml:"api_url" mapstructure:"api_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// ScraperConfig configures the official-site scraper. With an empty ProxyURL
// pages are fetched directly, honouring robots.txt.
type ScraperConfig struct {
	ProxyURL string        `json:"proxy_url" yaml:"proxy_url" mapstructure:"proxy_url"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxChars int           `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
}

type ArchiveConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" yaml:"path" mapstructure:"path"` // sqlite file, ":memory:" for a seeded in-memory archive
}

// CacheConfig configures both cache tiers
type CacheConfig struct {
	Enabled    bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Backend    string        `json:"backend" yaml:"backend" mapstructure:"backend"` // "memory" or "disk"
	Dir        string        `json:"dir" yaml:"dir" mapstructure:"dir"`
	QuotaBytes int64         `json:"quota_bytes" yaml:"quota_bytes" mapstructure:"quota_bytes"`
	TTL        time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	RemoteURL  string        `json:"remote_url,omitempty" yaml:"remote_url,omitempty" mapstructure:"remote_url"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// LLMConfig configures the synthesis backend
type LLMConfig struct {
	Provider         string        `json:"provider" yaml:"provider" mapstructure:"provider"` // gateway, openai, anthropic, ollama, "" (disabled)
	Model            string        `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	APIKey           string        `json:"-" yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL          string        `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	MaxTokens        int           `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts      int           `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
	ShortBaseDelay   time.Duration `json:"short_base_delay" yaml:"short_base_delay" mapstructure:"short_base_delay"`
	FullBaseDelay    time.Duration `json:"full_base_delay" yaml:"full_base_delay" mapstructure:"full_base_delay"`
	ArrivalBaseDelay time.Duration `json:"arrival_base_delay" yaml:"arrival_base_delay" mapstructure:"arrival_base_delay"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`    // debug, info, warn, error
	Format string `json:"format" yaml:"format" mapstructure:"format"` // json or console
}

// CacheServerConfig configures the remote cache service
type CacheServerConfig struct {
	Addr   string        `json:"addr" yaml:"addr" mapstructure:"addr"`
	DBPath string        `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
	Expiry time.Duration `json:"expiry" yaml:"expiry" mapstructure:"expiry"`
}

// DefaultOverpassMirrors are tried in order until one answers
var DefaultOverpassMirrors = []string{
	"https://overpass-api.de/api/interpreter",
	"https://overpass.openstreetmap.fr/api/interpreter",
	"https://overpass.kumi.systems/api/interpreter",
	"https://maps.mail.ru/osm/tools/overpass/api/interpreter",
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Language: "en",
		HTTP: HTTPConfig{
			Timeout:      12 * time.Second,
			UserAgent:    "poisignal/0.3 (+https://github.com/ppiankov/poisignal)",
			MaxBodyBytes: 2_000_000,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		Providers: ProvidersConfig{
			Wikipedia: WikipediaConfig{
				Enabled: true,
				APIURL:  "https://%s.wikipedia.org/w/api.php",
				Timeout: 8 * time.Second,
			},
			Overpass: OverpassConfig{
				Enabled:        true,
				Mirrors:        append([]string(nil), DefaultOverpassMirrors...),
				RadiusMeters:   50,
				AttemptTimeout: 4 * time.Second,
				MaxJitter:      150 * time.Millisecond,
			},
			DuckDuckGo: DuckDuckGoConfig{
				Enabled: true,
				BaseURL: "https://api.duckduckgo.com/",
				Timeout: 2 * time.Second,
			},
			WebSearch: WebSearchConfig{
				Enabled:           true,
				Timeout:           10 * time.Second,
				MaxResults:        8,
				DegradeThreshold:  2,
				QuotaPollInterval: 10 * time.Minute,
			},
			Wikidata: WikidataConfig{
				Enabled: true,
				APIURL:  "https://www.wikidata.org/w/api.php",
				Timeout: 5 * time.Second,
			},
			Scraper: ScraperConfig{
				Timeout:  6 * time.Second,
				MaxChars: 800,
			},
			Archive: ArchiveConfig{
				Enabled: true,
				Path:    ":memory:",
			},
		},
		Cache: CacheConfig{
			Enabled:    true,
			Backend:    "memory",
			QuotaBytes: 5 << 20,
			TTL:        60 * 24 * time.Hour,
			Timeout:    5 * time.Second,
		},
		LLM: LLMConfig{
			Provider:         "",
			Timeout:          60 * time.Second,
			MaxTokens:        1024,
			MaxAttempts:      5,
			ShortBaseDelay:   3 * time.Second,
			FullBaseDelay:    4 * time.Second,
			ArrivalBaseDelay: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		CacheServer: CacheServerConfig{
			Addr:   ":8088",
			DBPath: "poicache.db",
			Expiry: 60 * 24 * time.Hour,
		},
	}
}
