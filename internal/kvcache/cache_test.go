// ABOUTME: Tests for the write-coalescing cache.
// ABOUTME: Uses a counting store and a manual lifecycle to observe flushes.
package kvcache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/nutrition/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore records every SetItem call on top of an in-memory store.
type countingStore struct {
	*storage.Memory

	mu     sync.Mutex
	writes map[string][]string
}

func newCountingStore() *countingStore {
	return &countingStore{Memory: storage.NewMemory(), writes: make(map[string][]string)}
}

func (s *countingStore) SetItem(key, value string) error {
	s.mu.Lock()
	s.writes[key] = append(s.writes[key], value)
	s.mu.Unlock()
	return s.Memory.SetItem(key, value)
}

func (s *countingStore) writesFor(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes[key]...)
}

func newTestCache(t *testing.T, store storage.KV, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithFlushDelay(time.Hour)}, opts...)
	c := New(store, opts...)
	require.NoError(t, c.Open())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestSetCoalescesWrites(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, c.Set("k", "v1"))
	require.NoError(t, c.Set("k", "v2"))
	c.Flush(true)

	assert.Equal(t, []string{`"v2"`}, store.writesFor("k"))
	assert.Equal(t, 0, c.DirtyCount())
}

func TestSetDoesNotWriteThrough(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, c.Set("k", map[string]int{"a": 1}))

	_, ok, err := store.GetItem("k")
	require.NoError(t, err)
	assert.False(t, ok, "set must not reach the store before a flush")

	raw, ok := c.Get("k")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestFlushOnTerminate(t *testing.T) {
	store := newCountingStore()
	lc := NewManualLifecycle()
	c := newTestCache(t, store, WithLifecycle(lc))

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("key-%d", i), i))
	}

	lc.Terminate()

	for i := 0; i < n; i++ {
		v, ok, err := store.GetItem(fmt.Sprintf("key-%d", i))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprint(i), v)
	}
	assert.Equal(t, 0, c.DirtyCount())
	assert.Equal(t, 1, c.Stats().Flushes, "one flush per termination event")
}

func TestFlushOnHidden(t *testing.T) {
	store := newCountingStore()
	lc := NewManualLifecycle()
	c := newTestCache(t, store, WithLifecycle(lc))

	require.NoError(t, c.Set("k", true))
	lc.Hide()

	v, ok, err := store.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestCloseUnsubscribes(t *testing.T) {
	lc := NewManualLifecycle()
	c := New(newCountingStore(), WithLifecycle(lc), WithFlushDelay(time.Hour))
	require.NoError(t, c.Open())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	lc.Terminate()
	assert.Equal(t, 0, c.Stats().Flushes)
}

func TestRemoveIsImmediate(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, c.Set("persisted", 1))
	c.Flush(true)

	require.NoError(t, c.Set("k", "v"))
	c.Remove("k")
	c.Remove("persisted")

	_, ok := c.Get("k")
	assert.False(t, ok)
	_, ok, err := store.GetItem("persisted")
	require.NoError(t, err)
	assert.False(t, ok, "remove must reach the store without a flush")

	c.Flush(true)
	assert.Empty(t, store.writesFor("k"), "removed key must not be written by a later flush")
}

func TestDebouncedFlush(t *testing.T) {
	store := newCountingStore()
	c := New(store, WithFlushDelay(20*time.Millisecond))
	require.NoError(t, c.Open())
	defer c.Close()

	require.NoError(t, c.Set("a", 1))
	require.NoError(t, c.Set("b", 2))

	require.Eventually(t, func() bool {
		_, ok, _ := store.GetItem("b")
		return ok
	}, time.Second, 5*time.Millisecond)

	assert.Len(t, store.writesFor("a"), 1)
	assert.Equal(t, 0, c.DirtyCount())
}

func TestFlushNotImmediateSchedules(t *testing.T) {
	store := newCountingStore()
	c := New(store, WithFlushDelay(10*time.Millisecond))
	require.NoError(t, c.Open())
	defer c.Close()

	require.NoError(t, c.Set("k", 1))
	c.Flush(false)

	require.Eventually(t, func() bool { return c.DirtyCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHydrateOnOpen(t *testing.T) {
	store := newCountingStore()
	require.NoError(t, store.Memory.SetItem("json", `{"x":1}`))
	require.NoError(t, store.Memory.SetItem("plain", "not json"))

	c := newTestCache(t, store)

	raw, ok := c.Get("json")
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(raw))

	var s string
	ok, err := c.GetInto("plain", &s)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "not json", s)

	assert.Equal(t, 2, c.Stats().Hits)
	assert.Equal(t, 0, c.Stats().Misses)
}

func TestGetReadsThroughOnMiss(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, store.Memory.SetItem("late", `[1,2]`))

	raw, ok := c.Get("late")
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(raw))
	assert.Equal(t, 1, c.Stats().Misses)

	_, _ = c.Get("late")
	assert.Equal(t, 1, c.Stats().Hits)
}

func TestLockedKeyBypassesCache(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, c.Set("token", "old"))
	c.LockKey("token")
	assert.True(t, c.IsLocked("token"))

	v, ok, err := store.GetItem("token")
	require.NoError(t, err)
	require.True(t, ok, "buffered value is written before the key locks")
	assert.Equal(t, `"old"`, v)

	require.NoError(t, store.Memory.SetItem("token", `"external"`))
	var got string
	ok, err = c.GetInto("token", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "external", got)

	require.NoError(t, c.Set("token", "mine"))
	v, _, _ = store.GetItem("token")
	assert.Equal(t, `"mine"`, v, "locked writes go straight to the store")
	assert.Equal(t, 0, c.DirtyCount())
	assert.NotContains(t, c.Keys(""), "token")

	c.UnlockKey("token")
	assert.False(t, c.IsLocked("token"))
}

func TestLockedKeyWriteFailureIsReturned(t *testing.T) {
	q, err := storage.NewQuota(storage.NewMemory(), 20)
	require.NoError(t, err)
	c := newTestCache(t, q)
	c.LockKey("token")

	err = c.Set("token", strings.Repeat("t", 40))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
	assert.Equal(t, 1, c.Stats().Failures)
	assert.Equal(t, 0, c.DirtyCount(), "locked keys are never buffered")

	require.NoError(t, c.Set("token", "ok"))
	v, ok, _ := q.GetItem("token")
	require.True(t, ok)
	assert.Equal(t, `"ok"`, v)
}

func TestQuotaFailureEvictsAndRetries(t *testing.T) {
	mem := storage.NewMemory()
	q, err := storage.NewQuota(mem, 60)
	require.NoError(t, err)
	c := newTestCache(t, q)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Set(fmt.Sprintf("old-%d", i), "xx"))
	}
	c.Flush(true)
	require.Equal(t, 5*(5+4), q.Used())

	// touch the later keys so old-0 is least recently used
	for i := 1; i < 5; i++ {
		_, _ = c.Get(fmt.Sprintf("old-%d", i))
	}

	require.NoError(t, c.Set("new", strings.Repeat("y", 14)))
	c.Flush(true)

	assert.Equal(t, 0, c.DirtyCount())
	_, ok, _ := mem.GetItem("new")
	assert.True(t, ok, "retry after eviction should land the write")
	_, ok, _ = mem.GetItem("old-0")
	assert.False(t, ok, "least recently used clean key is evicted")
	_, ok = c.Get("old-0")
	assert.False(t, ok, "evicted key leaves memory too")
	assert.Equal(t, 1, c.Stats().Evictions)
}

func TestQuotaFailureKeepsDirty(t *testing.T) {
	q, err := storage.NewQuota(storage.NewMemory(), 10)
	require.NoError(t, err)
	c := newTestCache(t, q)

	require.NoError(t, c.Set("big", strings.Repeat("z", 50)))
	c.Flush(true)

	assert.Equal(t, 1, c.DirtyCount(), "failed write stays dirty")
	raw, ok := c.Get("big")
	require.True(t, ok, "value survives in memory")
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Len(t, s, 50)
	assert.Equal(t, 1, c.Stats().Failures)
}

func TestEvictFilterProtectsKeys(t *testing.T) {
	mem := storage.NewMemory()
	q, err := storage.NewQuota(mem, 30)
	require.NoError(t, err)
	c := newTestCache(t, q, WithEvictFilter(func(key string, _ json.RawMessage) bool {
		return strings.HasPrefix(key, "log:")
	}))

	require.NoError(t, c.Set("goals", 1))
	require.NoError(t, c.Set("log:a", 1))
	c.Flush(true)

	require.NoError(t, c.Set("log:b", "abcdefghijklmnop"))
	c.Flush(true)

	_, ok, _ := mem.GetItem("goals")
	assert.True(t, ok, "filtered key is never evicted")
	_, ok, _ = mem.GetItem("log:a")
	assert.False(t, ok)
}

func TestSetRejectsUnencodable(t *testing.T) {
	c := newTestCache(t, newCountingStore())
	err := c.Set("bad", make(chan int))
	assert.Error(t, err)
	assert.Equal(t, 0, c.DirtyCount())
}

func TestClearRemovesEverything(t *testing.T) {
	store := newCountingStore()
	c := newTestCache(t, store)

	require.NoError(t, c.Set("a", 1))
	c.Flush(true)
	require.NoError(t, c.Set("b", 2))
	c.Clear()

	assert.Empty(t, c.Keys(""))
	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.Equal(t, 0, c.DirtyCount())
}

func TestKeysByPrefix(t *testing.T) {
	c := newTestCache(t, newCountingStore())
	require.NoError(t, c.Set("log:2024-01-02", 1))
	require.NoError(t, c.Set("log:2024-01-01", 1))
	require.NoError(t, c.Set("goals", 1))

	assert.Equal(t, []string{"log:2024-01-01", "log:2024-01-02"}, c.Keys("log:"))
}

func TestSetAfterCloseWritesThrough(t *testing.T) {
	store := newCountingStore()
	c := New(store, WithFlushDelay(time.Hour))
	require.NoError(t, c.Open())
	require.NoError(t, c.Close())

	require.NoError(t, c.Set("late", 1))
	_, ok, _ := store.GetItem("late")
	assert.True(t, ok)
}
