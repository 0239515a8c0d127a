package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name    string `redis:"name"`
	Count   int    `redis:"count"`
	Enabled bool   `redis:"enabled"`
}

func TestMemoryStorageSetGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Set(ctx, "rec", testRecord{Name: "alice", Count: 3, Enabled: true}, time.Minute))

	var got testRecord
	require.NoError(t, s.Get(ctx, "rec", &got))
	assert.Equal(t, testRecord{Name: "alice", Count: 3, Enabled: true}, got)

	var count int
	require.NoError(t, s.GetAttr(ctx, "rec", "count", &count))
	assert.Equal(t, 3, count)

	var missing string
	assert.ErrorIs(t, s.GetAttr(ctx, "rec", "nope", &missing), ErrNotFound)
	assert.ErrorIs(t, s.Get(ctx, "other", &got), ErrNotFound)
}

func TestMemoryStorageSaveMerges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.Save(ctx, "h", map[string]any{"a": "1"}))
	require.NoError(t, s.Save(ctx, "h", map[string]any{"b": "0"}))

	var got map[string]string
	require.NoError(t, s.Get(ctx, "h", &got))
	assert.Equal(t, map[string]string{"a": "1", "b": "0"}, got)
}

func TestMemoryStorageExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStorage(WithMemoryClock(func() time.Time { return now }))

	require.NoError(t, s.Set(ctx, "k", map[string]any{"v": 1}, 10*time.Second))
	now = now.Add(9 * time.Second)
	var v int
	require.NoError(t, s.GetAttr(ctx, "k", "v", &v))

	now = now.Add(time.Second)
	assert.ErrorIs(t, s.GetAttr(ctx, "k", "v", &v), ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "k"), ErrNotFound)
}

func TestMemoryStorageRelativeExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStorage(WithMemoryClock(func() time.Time { return now }))

	_, err := s.IncrAttr(ctx, "k", "n", 1)
	require.NoError(t, err)
	require.NoError(t, s.Expire(ctx, "k", time.Minute))

	now = now.Add(59 * time.Second)
	var n int
	require.NoError(t, s.GetAttr(ctx, "k", "n", &n))
	assert.Equal(t, 1, n)

	now = now.Add(time.Second)
	assert.ErrorIs(t, s.GetAttr(ctx, "k", "n", &n), ErrNotFound)
}

func TestMemoryStorageSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewMemoryStorage(WithMemoryClock(func() time.Time { return now }), WithGCInterval(0))
	defer s.Close()

	require.NoError(t, s.Set(ctx, "short", map[string]any{"v": 1}, time.Second))
	require.NoError(t, s.Set(ctx, "long", map[string]any{"v": 1}, time.Hour))
	require.NoError(t, s.Save(ctx, "forever", map[string]any{"v": 1}))

	assert.Equal(t, 0, s.sweep())
	now = now.Add(time.Minute)
	assert.Equal(t, 1, s.sweep())
	assert.Len(t, s.entries, 2)
	_, ok := s.entries["short"]
	assert.False(t, ok)
}

func TestMemoryStorageBackgroundSweep(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(WithGCInterval(10 * time.Millisecond))
	defer s.Close()

	require.NoError(t, s.Set(ctx, "k", map[string]any{"v": 1}, time.Millisecond))
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.entries) == 0
	}, time.Second, 10*time.Millisecond)
	assert.NoError(t, s.Close())
}

func TestMemoryStorageIncrAttr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	n, err := s.IncrAttr(ctx, "counter", "failed", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = s.IncrAttr(ctx, "counter", "failed", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, s.DelAttr(ctx, "counter", "failed"))
	n, err = s.IncrAttr(ctx, "counter", "failed", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestPrefixedStore(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStorage()
	records := New[testRecord](backend, "rec:")

	require.NoError(t, backend.Save(ctx, "rec:1", testRecord{Name: "bob", Count: 2}))

	got, err := records.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Name)

	n, err := records.IncrAttr(ctx, "1", "count", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var count int
	require.NoError(t, records.GetAttr(ctx, "1", "count", &count))
	assert.Equal(t, 3, count)

	require.NoError(t, records.Delete(ctx, "1"))
	_, err = records.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}
