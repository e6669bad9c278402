package cache

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Quota(t *testing.T) {
	s := NewMemoryStore(10)

	require.NoError(t, s.Set("a", []byte("12345")))
	require.NoError(t, s.Set("b", []byte("12345")))
	assert.ErrorIs(t, s.Set("c", []byte("1")), ErrQuotaExceeded)

	// overwriting reuses the old entry's room
	require.NoError(t, s.Set("a", []byte("123")))
	assert.Equal(t, int64(8), s.Used())

	require.NoError(t, s.Delete("b"))
	assert.Equal(t, int64(3), s.Used())
	require.NoError(t, s.Delete("missing"))
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	s := NewMemoryStore(0)
	buf := []byte("abc")
	require.NoError(t, s.Set("k", buf))
	buf[0] = 'x'

	got, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryStore_ConcurrentLastWriteWins(t *testing.T) {
	s := NewMemoryStore(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set("same", []byte("value"))
		}()
	}
	wg.Wait()

	got, ok := s.Get("same")
	require.True(t, ok)
	assert.Equal(t, "value", string(got))
	assert.Equal(t, int64(5), s.Used())
}

func TestDiskStore_RoundTripAndKeys(t *testing.T) {
	s := NewDiskStore(t.TempDir(), 0)

	require.NoError(t, s.Set("short_node/1_en", []byte(`{"a":1}`)))
	require.NoError(t, s.Set("full_x_nl", []byte(`{"b":2}`)))

	got, ok := s.Get("short_node/1_en")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))

	keys := s.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"full_x_nl", "short_node/1_en"}, keys)

	require.NoError(t, s.Delete("full_x_nl"))
	require.NoError(t, s.Delete("full_x_nl"))
	_, ok = s.Get("full_x_nl")
	assert.False(t, ok)
}

func TestDiskStore_Quota(t *testing.T) {
	s := NewDiskStore(t.TempDir(), 10)

	require.NoError(t, s.Set("a", []byte("123456")))
	assert.ErrorIs(t, s.Set("b", []byte("123456")), ErrQuotaExceeded)
	require.NoError(t, s.Set("a", []byte("1234567890")), "overwrite fits once the old file is discounted")
}

func TestDiskStore_WithLocalTier(t *testing.T) {
	tier := NewLocalTier(NewDiskStore(t.TempDir(), 0))
	require.NoError(t, tier.Set("short_a_en", map[string]any{"description": "x"}))

	got, ok := tier.Get("short_a_en")
	require.True(t, ok)
	assert.JSONEq(t, `{"description":"x"}`, string(got))
}
