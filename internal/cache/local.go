package cache

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/poisignal/internal/logging"
)

const (
	// DefaultTTL is the local entry lifetime
	DefaultTTL = 60 * 24 * time.Hour
	// MaxImages caps any top-level "images" array before storage
	MaxImages = 3
	// pruneBatch is the minimum number of entries removed per prune round
	pruneBatch = 5
)

// LocalTier is the fast local cache. Entries carry a timestamp and expire
// after ttl; writes that hit the store quota evict the oldest entries that
// share the key's prefix.
type LocalTier struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
	mu     sync.Mutex
}

// LocalOption configures a LocalTier
type LocalOption func(*LocalTier)

// WithTTL overrides the 60-day default
func WithTTL(ttl time.Duration) LocalOption {
	return func(l *LocalTier) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock replaces time.Now (tests)
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalTier) { l.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) LocalOption {
	return func(l *LocalTier) { l.logger = logging.Or(logger) }
}

// NewLocalTier wraps a store
func NewLocalTier(store Store, opts ...LocalOption) *LocalTier {
	l := &LocalTier{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Get returns the stored data. Expired or unreadable entries are deleted and
// reported as a miss.
func (l *LocalTier) Get(key string) (json.RawMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, ok := l.store.Get(key)
	if !ok {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil || len(entry.Data) == 0 {
		_ = l.store.Delete(key)
		return nil, false
	}

	age := l.now().Sub(time.UnixMilli(entry.Timestamp))
	if age > l.ttl {
		_ = l.store.Delete(key)
		l.logger.Debug("cache: expired entry removed", zap.String("key", key), zap.Duration("age", age))
		return nil, false
	}
	return entry.Data, true
}

// Set stores data under key, pruning entries that share the key's kind
// prefix when the store is full.
func (l *LocalTier) Set(key string, data any) error {
	return l.SetWithPrefix(key, data, KindPrefix(key))
}

// SetWithPrefix stores data and, on quota exhaustion, prunes the oldest
// entries whose key starts with prefix, at least five per round, retrying the
// write after each round. When the prefix is exhausted the write is abandoned.
func (l *LocalTier) SetWithPrefix(key string, data any, prefix string) error {
	payload, err := encodeData(data)
	if err != nil {
		return err
	}
	value, err := json.Marshal(Entry{
		Data:      payload,
		Timestamp: l.now().UnixMilli(),
		Version:   Version,
	})
	if err != nil {
		return eris.Wrap(err, "cache: marshal entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	err = l.store.Set(key, value)
	if err == nil || !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	candidates := l.oldestFirst(prefix)
	pruned := 0
	for len(candidates) > 0 {
		n := pruneBatch
		if n > len(candidates) {
			n = len(candidates)
		}
		for _, k := range candidates[:n] {
			_ = l.store.Delete(k)
		}
		pruned += n
		candidates = candidates[n:]

		err = l.store.Set(key, value)
		if err == nil {
			l.logger.Info("cache: pruned entries to make room",
				zap.String("key", key),
				zap.String("prefix", prefix),
				zap.Int("pruned", pruned),
			)
			return nil
		}
		if !errors.Is(err, ErrQuotaExceeded) {
			return err
		}
	}

	l.logger.Warn("cache: write abandoned, quota exhausted",
		zap.String("key", key),
		zap.String("prefix", prefix),
		zap.Int("pruned", pruned),
	)
	return ErrQuotaExceeded
}

// Delete removes a key
func (l *LocalTier) Delete(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Delete(key)
}

// oldestFirst returns keys with the prefix sorted by entry timestamp.
// Unreadable entries sort first.
func (l *LocalTier) oldestFirst(prefix string) []string {
	type aged struct {
		key string
		ts  int64
	}
	var list []aged
	for _, k := range l.store.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		var entry Entry
		if raw, ok := l.store.Get(k); ok {
			_ = json.Unmarshal(raw, &entry)
		}
		list = append(list, aged{key: k, ts: entry.Timestamp})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].ts != list[j].ts {
			return list[i].ts < list[j].ts
		}
		return list[i].key < list[j].key
	})

	keys := make([]string, len(list))
	for i, a := range list {
		keys[i] = a.key
	}
	return keys
}

// KindPrefix returns "kind_" for a key built by Key
func KindPrefix(key string) string {
	if i := strings.Index(key, "_"); i >= 0 {
		return key[:i+1]
	}
	return key
}

// encodeData marshals data and caps a top-level "images" array. Values that
// need no capping keep their exact encoding.
func encodeData(data any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, eris.Wrap(err, "cache: marshal data")
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, eris.New("cache: data is not valid JSON")
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return raw, nil
	}
	imagesRaw, ok := obj["images"]
	if !ok {
		return raw, nil
	}
	var images []json.RawMessage
	if err := json.Unmarshal(imagesRaw, &images); err != nil || len(images) <= MaxImages {
		return raw, nil
	}

	capped, err := json.Marshal(images[:MaxImages])
	if err != nil {
		return nil, eris.Wrap(err, "cache: marshal images")
	}
	obj["images"] = capped
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, eris.Wrap(err, "cache: marshal capped data")
	}
	return out, nil
}
