package cache

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Description string   `json:"description"`
	Images      []string `json:"images,omitempty"`
	Score       float64  `json:"score"`
}

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestLocalTier_RoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	tier := NewLocalTier(NewMemoryStore(0), WithClock(fixedClock(&now)))

	value := sample{Description: "Stadhuis <1630> & more", Score: 0.95}
	require.NoError(t, tier.Set("short_city-hall_en", value))

	now = now.Add(59 * 24 * time.Hour)
	got, ok := tier.Get("short_city-hall_en")
	require.True(t, ok)

	want, _ := json.Marshal(value)
	assert.Equal(t, string(want), string(got))
}

func TestLocalTier_ImagesCapped(t *testing.T) {
	tier := NewLocalTier(NewMemoryStore(0))

	value := sample{Description: "x", Images: []string{"1.jpg", "2.jpg", "3.jpg", "4.jpg", "5.jpg"}}
	require.NoError(t, tier.Set("short_a_en", value))

	got, ok := tier.Get("short_a_en")
	require.True(t, ok)

	var decoded sample
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, []string{"1.jpg", "2.jpg", "3.jpg"}, decoded.Images)
	assert.Equal(t, "x", decoded.Description)
}

func TestLocalTier_ExpiredEntryRemoved(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	tier := NewLocalTier(store, WithClock(fixedClock(&now)))

	require.NoError(t, tier.Set("short_a_en", sample{Description: "old"}))

	now = now.Add(61 * 24 * time.Hour)
	_, ok := tier.Get("short_a_en")
	assert.False(t, ok)

	_, stillStored := store.Get("short_a_en")
	assert.False(t, stillStored, "expired entry should be deleted from the store")
}

func TestLocalTier_CorruptEntryIsMiss(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.Set("short_a_en", []byte("not json")))

	tier := NewLocalTier(store)
	_, ok := tier.Get("short_a_en")
	assert.False(t, ok)
	assert.Empty(t, store.Keys())
}

func TestLocalTier_EntryEnvelope(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(0)
	tier := NewLocalTier(store, WithClock(fixedClock(&now)))
	require.NoError(t, tier.Set("short_a_en", map[string]string{"k": "v"}))

	raw, ok := store.Get("short_a_en")
	require.True(t, ok)

	var entry Entry
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, Version, entry.Version)
	assert.Equal(t, now.UnixMilli(), entry.Timestamp)
	assert.JSONEq(t, `{"k":"v"}`, string(entry.Data))
}

// entrySize is the stored size of one test entry
func entrySize(t *testing.T, key string) int64 {
	t.Helper()
	store := NewMemoryStore(0)
	tier := NewLocalTier(store, WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
	require.NoError(t, tier.Set(key, sample{Description: "0123456789"}))
	return store.Used()
}

func TestLocalTier_QuotaPrunesOldestWithPrefix(t *testing.T) {
	size := entrySize(t, "short_p00_en")
	store := NewMemoryStore(size * 10)

	now := time.UnixMilli(1_700_000_000_000)
	tier := NewLocalTier(store, WithClock(fixedClock(&now)))

	// 8 short entries and 2 full entries fill the store exactly
	for i := 0; i < 8; i++ {
		now = now.Add(time.Second)
		require.NoError(t, tier.Set(fmt.Sprintf("short_p%02d_en", i), sample{Description: "0123456789"}))
	}
	for i := 0; i < 2; i++ {
		now = now.Add(time.Second)
		require.NoError(t, tier.Set(fmt.Sprintf("full_p%02d_en", i), sample{Description: "0123456789"}))
	}

	now = now.Add(time.Second)
	require.NoError(t, tier.Set("short_p99_en", sample{Description: "0123456789"}))

	// five oldest short entries are gone, everything else survives
	for i := 0; i < 5; i++ {
		_, ok := store.Get(fmt.Sprintf("short_p%02d_en", i))
		assert.False(t, ok, "short_p%02d_en should be pruned", i)
	}
	for i := 5; i < 8; i++ {
		_, ok := store.Get(fmt.Sprintf("short_p%02d_en", i))
		assert.True(t, ok, "short_p%02d_en should survive", i)
	}
	for i := 0; i < 2; i++ {
		_, ok := store.Get(fmt.Sprintf("full_p%02d_en", i))
		assert.True(t, ok, "other prefixes are untouched")
	}
	_, ok := tier.Get("short_p99_en")
	assert.True(t, ok)
}

func TestLocalTier_QuotaAbandonsWhenPrefixExhausted(t *testing.T) {
	size := entrySize(t, "full_p00_en")
	store := NewMemoryStore(size * 2)

	now := time.UnixMilli(1_700_000_000_000)
	tier := NewLocalTier(store, WithClock(fixedClock(&now)))

	require.NoError(t, tier.Set("full_p00_en", sample{Description: "0123456789"}))
	require.NoError(t, tier.Set("full_p01_en", sample{Description: "0123456789"}))

	err := tier.Set("short_p00_en", sample{Description: "0123456789"})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Len(t, store.Keys(), 2, "entries outside the prefix are never pruned")
}

func TestLocalTier_InvalidJSONRejected(t *testing.T) {
	tier := NewLocalTier(NewMemoryStore(0))
	assert.Error(t, tier.Set("short_a_en", json.RawMessage(`{"broken"`)))
}
