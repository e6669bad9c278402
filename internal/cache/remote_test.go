package cache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory cache service
type fakeRemote struct {
	mu     sync.Mutex
	data   map[string]json.RawMessage
	posts  int
	status int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string]json.RawMessage)}
}

func (f *fakeRemote) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	switch r.Method {
	case http.MethodGet:
		v, ok := f.data[r.URL.Query().Get("key")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found":false}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"found": true, "data": v})
	case http.MethodPost:
		var req remoteSetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.posts++
		f.data[req.Key] = req.Data
		_, _ = w.Write([]byte(`{"success":true}`))
	}
}

func TestRemoteTier_SetGet(t *testing.T) {
	fake := newFakeRemote()
	server := httptest.NewServer(fake)
	defer server.Close()

	r := NewRemoteTier(server.URL+"/", nil, nil)
	ctx := context.Background()

	_, ok := r.Get(ctx, "short_x_en")
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, "short_x_en", "en", json.RawMessage(`{"description":"hi"}`)))
	got, ok := r.Get(ctx, "short_x_en")
	require.True(t, ok)
	assert.JSONEq(t, `{"description":"hi"}`, string(got))
}

func TestRemoteTier_FailuresAreSilentMisses(t *testing.T) {
	fake := newFakeRemote()
	fake.status = http.StatusInternalServerError
	server := httptest.NewServer(fake)

	r := NewRemoteTier(server.URL, nil, nil)
	_, ok := r.Get(context.Background(), "k")
	assert.False(t, ok)
	assert.Error(t, r.Set(context.Background(), "k", "en", json.RawMessage(`{}`)))

	server.Close()
	_, ok = r.Get(context.Background(), "k")
	assert.False(t, ok, "network errors are a miss")
}

func TestRemoteTier_GarbageIsMiss(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	_, ok := NewRemoteTier(server.URL, nil, nil).Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestLayered_RemoteHitPromotedToLocal(t *testing.T) {
	fake := newFakeRemote()
	fake.data["short_x_en"] = json.RawMessage(`{"description":"remote"}`)
	server := httptest.NewServer(fake)
	defer server.Close()

	local := NewLocalTier(NewMemoryStore(0))
	c := NewLayered(local, NewRemoteTier(server.URL, nil, nil), nil)

	data, tier, ok := c.Lookup(context.Background(), "short_x_en")
	require.True(t, ok)
	assert.Equal(t, TierRemote, tier)
	assert.JSONEq(t, `{"description":"remote"}`, string(data))

	_, tier, ok = c.Lookup(context.Background(), "short_x_en")
	require.True(t, ok)
	assert.Equal(t, TierLocal, tier)
}

func TestLayered_SetWritesBothTiers(t *testing.T) {
	fake := newFakeRemote()
	server := httptest.NewServer(fake)
	defer server.Close()

	local := NewLocalTier(NewMemoryStore(0))
	c := NewLayered(local, NewRemoteTier(server.URL, nil, nil), nil)

	c.Set(context.Background(), "short_y_nl", "nl", map[string]any{
		"description": "y",
		"images":      []string{"1", "2", "3", "4"},
	})

	_, ok := local.Get("short_y_nl")
	assert.True(t, ok)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.posts)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(fake.data["short_y_nl"], &stored))
	assert.Len(t, stored["images"], 3)
}

func TestLayered_NilSafe(t *testing.T) {
	var c *Layered
	_, ok := c.Get(context.Background(), "k")
	assert.False(t, ok)
	c.Set(context.Background(), "k", "en", "v")

	onlyLocal := NewLayered(NewLocalTier(NewMemoryStore(0)), nil, nil)
	onlyLocal.Set(context.Background(), "k_a_en", "en", map[string]int{"a": 1})
	_, ok = onlyLocal.Get(context.Background(), "k_a_en")
	assert.True(t, ok)
}
