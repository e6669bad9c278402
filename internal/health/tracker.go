// Package health tracks which external providers are currently unusable.
package health

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// FailureKind classifies a structural provider failure
type FailureKind int

const (
	// FailureTransient covers timeouts, 5xx, empty or malformed payloads.
	// These only degrade a provider after consecutive repeats.
	FailureTransient FailureKind = iota
	// FailureQuota covers exhausted quota and auth rejections (401/403/429/432).
	// These degrade a provider immediately.
	FailureQuota
)

func (k FailureKind) String() string {
	if k == FailureQuota {
		return "quota"
	}
	return "transient"
}

// ClassifyStatus maps an HTTP status code to a failure kind
func ClassifyStatus(code int) FailureKind {
	switch code {
	case 401, 403, 429, 432:
		return FailureQuota
	default:
		return FailureTransient
	}
}

// ProviderState is a snapshot of one provider's health
type ProviderState struct {
	Provider            string    `json:"provider"`
	Degraded            bool      `json:"degraded"`
	Reason              string    `json:"reason,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Successes           int64     `json:"successes"`
	Failures            int64     `json:"failures"`
	DegradedAt          time.Time `json:"degraded_at,omitempty"`
}

// Tracker is the process-wide degraded-provider registry. One Tracker is
// created per process and shared by every provider client. A degraded
// provider stays degraded until Restore is called after a quota recheck.
type Tracker struct {
	mu             sync.Mutex
	states         map[string]*ProviderState
	threshold      int
	pollInterval   time.Duration
	lastQuotaCheck map[string]time.Time
	usage          map[string]map[string]int // day (2006-01-02) -> provider -> calls
	retainDays     int
	now            func() time.Time
	logger         *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithThreshold sets how many consecutive transient failures degrade a provider
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

// WithQuotaPollInterval sets the minimum time between quota polls per provider
func WithQuotaPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithLogger sets the logger used for degrade/restore events
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates a tracker with every provider initially healthy
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		states:         make(map[string]*ProviderState),
		threshold:      2,
		pollInterval:   10 * time.Minute,
		lastQuotaCheck: make(map[string]time.Time),
		usage:          make(map[string]map[string]int),
		retainDays:     30,
		now:            time.Now,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsDegraded reports whether the provider should be bypassed
func (t *Tracker) IsDegraded(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[provider]
	return ok && s.Degraded
}

// RecordSuccess resets the consecutive failure counter. It does not clear a
// degraded flag.
func (t *Tracker) RecordSuccess(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(provider)
	s.Successes++
	s.ConsecutiveFailures = 0
}

// RecordFailure registers a structural failure and reports whether the
// provider is degraded afterwards.
func (t *Tracker) RecordFailure(provider string, kind FailureKind, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(provider)
	s.Failures++
	s.ConsecutiveFailures++

	if s.Degraded {
		return true
	}
	if kind == FailureQuota || s.ConsecutiveFailures >= t.threshold {
		t.degradeLocked(s, reason)
	}
	return s.Degraded
}

// MarkDegraded unconditionally degrades a provider
func (t *Tracker) MarkDegraded(provider, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(provider)
	if !s.Degraded {
		t.degradeLocked(s, reason)
	}
}

// Restore clears the degraded flag. Only a quota recheck that found capacity
// should call this.
func (t *Tracker) Restore(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(provider)
	if !s.Degraded {
		return
	}
	s.Degraded = false
	s.Reason = ""
	s.ConsecutiveFailures = 0
	s.DegradedAt = time.Time{}
	t.logger.Info("health: provider restored", zap.String("provider", provider))
}

// ShouldCheckQuota reports whether a quota poll is due for the provider and,
// if so, records the poll time. At most one caller per interval gets true.
func (t *Tracker) ShouldCheckQuota(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if last, ok := t.lastQuotaCheck[provider]; ok && now.Sub(last) < t.pollInterval {
		return false
	}
	t.lastQuotaCheck[provider] = now
	return true
}

// RecordCall counts one outbound API call against today's usage
func (t *Tracker) RecordCall(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	day := t.now().Format("2006-01-02")
	calls, ok := t.usage[day]
	if !ok {
		calls = make(map[string]int)
		t.usage[day] = calls
		t.pruneUsageLocked()
	}
	calls[provider]++
}

// Usage returns the call counts for a day (format 2006-01-02)
func (t *Tracker) Usage(day string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.usage[day]))
	for k, v := range t.usage[day] {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of every known provider state, sorted by name
func (t *Tracker) Snapshot() []ProviderState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ProviderState, 0, len(t.states))
	for _, s := range t.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

func (t *Tracker) state(provider string) *ProviderState {
	s, ok := t.states[provider]
	if !ok {
		s = &ProviderState{Provider: provider}
		t.states[provider] = s
	}
	return s
}

func (t *Tracker) degradeLocked(s *ProviderState, reason string) {
	s.Degraded = true
	s.Reason = reason
	s.DegradedAt = t.now()
	t.logger.Warn("health: provider degraded",
		zap.String("provider", s.Provider),
		zap.String("reason", reason),
		zap.Int("consecutive_failures", s.ConsecutiveFailures),
	)
}

func (t *Tracker) pruneUsageLocked() {
	cutoff := t.now().AddDate(0, 0, -t.retainDays).Format("2006-01-02")
	for day := range t.usage {
		if day < cutoff {
			delete(t.usage, day)
		}
	}
}
