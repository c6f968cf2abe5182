package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/squeeze/internal/compactor"
)

func newTestStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()
	clock := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s := NewMemoryStoreWithDualTTL(time.Minute, time.Hour)
	s.now = func() time.Time { return clock }
	t.Cleanup(func() { _ = s.Close() })
	return s, &clock
}

func TestContentID(t *testing.T) {
	id := ContentID("Error: boom")
	assert.True(t, strings.HasPrefix(id, "sq_"))
	assert.Len(t, id, len("sq_")+16)
	assert.Equal(t, id, ContentID("Error: boom"))
	assert.NotEqual(t, id, ContentID("Error: boom!"))
}

func TestMemoryStore_SetGet(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.Set("k", "original"))
	v, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "original", v)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestMemoryStore_DualTTL(t *testing.T) {
	s, clock := newTestStore(t)
	res := Compaction{
		Result:    compactor.Result{Compacted: "Error", OriginalSize: 40, CompactedSize: 5},
		Fallback:  true,
		KeptLines: 1,
	}

	require.NoError(t, s.Set("k", "original"))
	require.NoError(t, s.SetCompacted("k", res))

	*clock = clock.Add(2 * time.Minute)

	_, ok := s.Get("k")
	assert.False(t, ok, "original expires after the short TTL")
	got, ok := s.GetCompacted("k")
	assert.True(t, ok, "compacted result outlives the original")
	assert.Equal(t, res, got)

	orig, comp := s.Len()
	assert.Equal(t, 0, orig)
	assert.Equal(t, 1, comp)

	*clock = clock.Add(2 * time.Hour)
	_, ok = s.GetCompacted("k")
	assert.False(t, ok)
}

func TestMemoryStore_EvictExpired(t *testing.T) {
	s, clock := newTestStore(t)
	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.SetCompacted("a", Compaction{}))

	*clock = clock.Add(3 * time.Hour)
	s.evictExpired()

	assert.Empty(t, s.data)
	assert.Empty(t, s.compacted)
}

func TestMemoryStore_Delete(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("k", "v"))
	require.NoError(t, s.SetCompacted("k", Compaction{Result: compactor.Result{Compacted: "v"}}))

	require.NoError(t, s.Delete("k"))

	_, ok := s.Get("k")
	assert.False(t, ok)
	_, ok = s.GetCompacted("k")
	assert.False(t, ok)
}

func TestMemoryStore_ClosedIgnoresWrites(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.NoError(t, s.Set("k", "v"))
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestNewMemoryStore_DefaultTTLs(t *testing.T) {
	s := NewMemoryStoreWithDualTTL(0, 0)
	defer s.Close()
	assert.Equal(t, DefaultOriginalTTL, s.originalTTL)
	assert.Equal(t, DefaultCompactedTTL, s.compactedTTL)
}
