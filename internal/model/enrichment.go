package model

import "time"

// MergedPayload is the bounded, ranked summary handed to synthesis
type MergedPayload struct {
	DescriptionCandidates []DescriptionCandidate `json:"description_candidates"` // At most 5
	Categories            []string               `json:"categories"`
	Images                []string               `json:"images"` // At most 3
	Website               string                 `json:"website,omitempty"`
	Facts                 []string               `json:"facts"` // At most 4
}

// DescriptionCandidate is one deduplicated description tagged with its origin
type DescriptionCandidate struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// Resolution is the best single-signal answer, used when synthesis is unavailable
type Resolution struct {
	Description string   `json:"description"`
	Link        string   `json:"link,omitempty"`
	Images      []string `json:"images,omitempty"`
	Source      string   `json:"source"`
	Confidence  float64  `json:"confidence"`
}

// ShortDescription is the parsed short synthesis stage. Confidence is the
// model's own label ("Hoog", "Middel", "Laag" or the English equivalent).
type ShortDescription struct {
	Description string `json:"description"`
	Confidence  string `json:"confidence,omitempty"`
}

// Details is the parsed full synthesis stage
type Details struct {
	Standard StandardVersion `json:"standard_version"`
	Extended ExtendedVersion `json:"extended_version"`
}

type StandardVersion struct {
	Description string `json:"description"`
	FunFact     string `json:"fun_fact,omitempty"`
	Confidence  string `json:"confidence,omitempty"`
}

type ExtendedVersion struct {
	FullDescription           string   `json:"full_description"`
	FullDescriptionConfidence string   `json:"full_description_confidence,omitempty"`
	MatchingReasons           []string `json:"why_this_matches_your_interests,omitempty"`
	InterestsConfidence       string   `json:"interests_confidence,omitempty"`
	FunFacts                  []string `json:"fun_facts,omitempty"`
	FunFactsConfidence        string   `json:"fun_facts_confidence,omitempty"`
	TwoMinuteHighlight        string   `json:"if_you_only_have_2_minutes,omitempty"`
	HighlightConfidence       string   `json:"highlight_confidence,omitempty"`
	VisitorTips               string   `json:"visitor_tips,omitempty"`
	TipsConfidence            string   `json:"tips_confidence,omitempty"`
}

// EnrichState is a state of the per-call enrichment state machine
type EnrichState string

const (
	StateIdle         EnrichState = "IDLE"
	StateGathering    EnrichState = "GATHERING"
	StateScoring      EnrichState = "SCORING"
	StateMerging      EnrichState = "MERGING"
	StateCacheCheck   EnrichState = "CACHE_CHECK"
	StateCacheHit     EnrichState = "CACHE_HIT"
	StateCacheMiss    EnrichState = "CACHE_MISS"
	StateSynthesizing EnrichState = "SYNTHESIZING"
	StateCacheWrite   EnrichState = "CACHE_WRITE"
	StateDone         EnrichState = "DONE"
	StateCancelled    EnrichState = "CANCELLED"
)

// Enrichment is the complete result of enriching one POI
type Enrichment struct {
	RunID      string            `json:"run_id"`
	Poi        Poi               `json:"poi"`
	Normalized string            `json:"normalized_name"`
	State      EnrichState       `json:"state"`
	Trace      []EnrichState     `json:"trace"` // States visited, in order
	Signals    []ScoredSignal    `json:"signals"`
	Payload    MergedPayload     `json:"payload"`
	Entity     *CanonicalEntity  `json:"entity,omitempty"`
	Resolution Resolution        `json:"resolution"`
	Short      *ShortDescription `json:"short,omitempty"`   // nil when synthesis is disabled or failed
	Details    *Details          `json:"details,omitempty"` // only when full details were requested
	Arrival    string            `json:"arrival,omitempty"` // only when arrival instructions were requested
	FromCache  bool              `json:"from_cache"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
}
