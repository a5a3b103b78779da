// ABOUTME: Write-coalescing in-memory cache in front of a synchronous KV store.
// ABOUTME: Sets are buffered and flushed on a debounce timer or lifecycle events.
package kvcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/nutrition/internal/metrics"
	"github.com/harperreed/nutrition/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultFlushDelay is how long after the last Set a flush runs.
	DefaultFlushDelay = 500 * time.Millisecond

	// DefaultEvictFraction is the share of clean entries evicted on quota failure.
	DefaultEvictFraction = 0.2
)

// EvictFilter reports whether a clean key may be evicted to reclaim space.
// It runs with the cache locked and must not call back into the cache.
type EvictFilter func(key string, raw json.RawMessage) bool

type entry struct {
	raw      json.RawMessage
	lastUsed uint64
}

// Stats counts cache activity since Open.
type Stats struct {
	Hits        int
	Misses      int
	Flushes     int
	StoreWrites int
	Failures    int
	Evictions   int
}

// Cache buffers writes to a storage.KV. Reads are served from memory after a
// one-time hydration. Store failures are logged and never returned to callers.
type Cache struct {
	store         storage.KV
	delay         time.Duration
	evictFraction float64
	evictFilter   EvictFilter
	lifecycle     Lifecycle
	log           zerolog.Logger

	mu          sync.Mutex
	entries     map[string]*entry
	dirty       map[string]struct{}
	locked      map[string]struct{}
	timer       *time.Timer
	clock       uint64
	stats       Stats
	closed      bool
	unsubscribe func()

	openOnce  sync.Once
	openErr   error
	closeOnce sync.Once
}

// Option configures a Cache.
type Option func(*Cache)

// WithFlushDelay sets the debounce delay between the last Set and the flush.
func WithFlushDelay(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithLifecycle subscribes the cache to terminate/hidden events on Open.
func WithLifecycle(l Lifecycle) Option {
	return func(c *Cache) { c.lifecycle = l }
}

// WithLogger sets the logger for absorbed failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithEvictFraction sets the share of clean entries evicted on quota failure.
func WithEvictFraction(f float64) Option {
	return func(c *Cache) {
		if f > 0 && f <= 1 {
			c.evictFraction = f
		}
	}
}

// WithEvictFilter restricts which clean keys may be evicted.
func WithEvictFilter(f EvictFilter) Option {
	return func(c *Cache) { c.evictFilter = f }
}

// SetEvictFilter replaces the eviction filter after construction, for owners
// that are built on top of the cache.
func (c *Cache) SetEvictFilter(f EvictFilter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictFilter = f
}

// New creates a cache over store. Call Open before use and Close when done.
func New(store storage.KV, opts ...Option) *Cache {
	c := &Cache{
		store:         store,
		delay:         DefaultFlushDelay,
		evictFraction: DefaultEvictFraction,
		log:           zerolog.Nop(),
		entries:       make(map[string]*entry),
		dirty:         make(map[string]struct{}),
		locked:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open hydrates the cache from every key in the store and subscribes to
// lifecycle events. Safe to call more than once; only the first call does work.
func (c *Cache) Open() error {
	c.openOnce.Do(func() {
		c.openErr = c.hydrate()
		if c.openErr != nil {
			return
		}
		if c.lifecycle != nil {
			c.unsubscribe = c.lifecycle.Subscribe(c.onLifecycle)
		}
	})
	return c.openErr
}

func (c *Cache) hydrate() error {
	keys, err := c.store.Keys()
	if err != nil {
		return fmt.Errorf("hydrate cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		v, ok, err := c.store.GetItem(k)
		if err != nil {
			c.log.Warn().Err(err).Str("key", k).Msg("skipping unreadable key during hydration")
			continue
		}
		if !ok {
			continue
		}
		c.entries[k] = &entry{raw: decodeStored(v), lastUsed: c.tick()}
	}
	c.log.Debug().Int("keys", len(c.entries)).Msg("cache hydrated")
	return nil
}

func (c *Cache) onLifecycle(ev Event) {
	c.log.Debug().Stringer("event", ev).Msg("lifecycle flush")
	c.Flush(true)
}

// Close flushes dirty keys, stops the timer and unsubscribes from lifecycle
// events. It does not close the underlying store.
func (c *Cache) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.timer != nil {
			c.timer.Stop()
		}
		c.flushLocked()
		c.closed = true
		unsubscribe := c.unsubscribe
		c.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
	})
	return nil
}

// Get returns the JSON value for key. Cached values are returned directly;
// otherwise the store is read and the result cached. Locked keys always go
// to the store.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.locked[key]; ok {
		return c.readStore(key)
	}

	if e, ok := c.entries[key]; ok {
		c.stats.Hits++
		e.lastUsed = c.tick()
		return cloneRaw(e.raw), true
	}

	c.stats.Misses++
	raw, ok := c.readStore(key)
	if !ok {
		return nil, false
	}
	c.entries[key] = &entry{raw: raw, lastUsed: c.tick()}
	return cloneRaw(raw), true
}

// GetInto decodes the value for key into v. It reports false when the key is absent.
func (c *Cache) GetInto(key string, v any) (bool, error) {
	raw, ok := c.Get(key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set caches v under key, marks it dirty and schedules a flush. Locked keys
// are written to the store immediately and a failed write is returned; for
// other keys store failures surface at flush time and only encoding errors
// are returned.
func (c *Cache) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.locked[key]; ok {
		if err := c.store.SetItem(key, string(raw)); err != nil {
			c.stats.Failures++
			metrics.CacheWriteFailures.Inc()
			c.log.Error().Err(err).Str("key", key).Msg("write to locked key failed")
			return fmt.Errorf("write locked key %s: %w", key, err)
		}
		return nil
	}

	c.entries[key] = &entry{raw: raw, lastUsed: c.tick()}
	c.dirty[key] = struct{}{}
	c.scheduleLocked()
	return nil
}

// Remove deletes key from the cache and from the store immediately.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	delete(c.dirty, key)
	if err := c.store.RemoveItem(key); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("remove from store failed")
	}
}

// Clear removes every cached and stored key, including locked ones.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.store.Keys()
	if err != nil {
		c.log.Error().Err(err).Msg("list store keys for clear failed")
	}
	for k := range c.entries {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if err := c.store.RemoveItem(k); err != nil {
			c.log.Error().Err(err).Str("key", k).Msg("remove from store failed")
		}
	}
	c.entries = make(map[string]*entry)
	c.dirty = make(map[string]struct{})
}

// Flush writes dirty keys. With immediate it writes now; otherwise it
// (re)schedules the debounced flush.
func (c *Cache) Flush(immediate bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !immediate {
		if len(c.dirty) > 0 {
			c.scheduleLocked()
		}
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.flushLocked()
}

// LockKey makes key bypass the cache: reads and writes go to the store.
// Any buffered value is written out first so it is not lost.
func (c *Cache) LockKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.dirty[key]; ok {
		e := c.entries[key]
		if err := c.store.SetItem(key, string(e.raw)); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("write before lock failed")
		}
		delete(c.dirty, key)
	}
	delete(c.entries, key)
	c.locked[key] = struct{}{}
}

// UnlockKey returns key to normal caching.
func (c *Cache) UnlockKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locked, key)
}

// IsLocked reports whether key bypasses the cache.
func (c *Cache) IsLocked(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.locked[key]
	return ok
}

// Keys returns the cached keys with the given prefix, sorted.
func (c *Cache) Keys(prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []string
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// DirtyCount returns how many keys await a flush.
func (c *Cache) DirtyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Stats returns a copy of the activity counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Cache) scheduleLocked() {
	if c.closed {
		c.flushLocked()
		return
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.delay, c.onTimer)
		return
	}
	c.timer.Reset(c.delay)
}

func (c *Cache) onTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// flushLocked writes every dirty key. On failure it evicts clean entries when
// the store is full and retries once; keys that still fail stay dirty.
func (c *Cache) flushLocked() {
	if len(c.dirty) == 0 {
		return
	}
	c.stats.Flushes++
	metrics.CacheFlushes.Inc()

	err := c.writeDirty()
	if err == nil {
		return
	}

	if errors.Is(err, storage.ErrQuotaExceeded) {
		c.evictLocked()
	}
	if err = c.writeDirty(); err != nil {
		c.stats.Failures++
		metrics.CacheWriteFailures.Inc()
		c.log.Warn().Err(err).Int("dirty", len(c.dirty)).Msg("flush incomplete, keys stay dirty")
	}
}

// writeDirty writes dirty keys in key order and returns the first failure.
func (c *Cache) writeDirty() error {
	keys := make([]string, 0, len(c.dirty))
	for k := range c.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstErr error
	for _, k := range keys {
		e, ok := c.entries[k]
		if !ok {
			delete(c.dirty, k)
			continue
		}
		if err := c.store.SetItem(k, string(e.raw)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(c.dirty, k)
		c.stats.StoreWrites++
		metrics.CacheStoreWrites.Inc()
	}
	return firstErr
}

// evictLocked removes the least recently used share of clean, evictable
// entries from both the store and memory.
func (c *Cache) evictLocked() {
	type candidate struct {
		key      string
		lastUsed uint64
	}
	var candidates []candidate
	for k, e := range c.entries {
		if _, dirty := c.dirty[k]; dirty {
			continue
		}
		if c.evictFilter != nil && !c.evictFilter(k, e.raw) {
			continue
		}
		candidates = append(candidates, candidate{key: k, lastUsed: e.lastUsed})
	}
	if len(candidates) == 0 {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastUsed < candidates[j].lastUsed
	})
	n := int(math.Ceil(float64(len(candidates)) * c.evictFraction))

	for _, cand := range candidates[:n] {
		if err := c.store.RemoveItem(cand.key); err != nil {
			c.log.Warn().Err(err).Str("key", cand.key).Msg("evict failed")
			continue
		}
		delete(c.entries, cand.key)
		c.stats.Evictions++
		metrics.CacheEvictions.Inc()
		c.log.Warn().Str("key", cand.key).Msg("evicted clean key to reclaim space")
	}
}

func (c *Cache) readStore(key string) (json.RawMessage, bool) {
	v, ok, err := c.store.GetItem(key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("read from store failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return decodeStored(v), true
}

func (c *Cache) tick() uint64 {
	c.clock++
	return c.clock
}

// decodeStored keeps valid JSON as-is and wraps anything else as a JSON string.
func decodeStored(v string) json.RawMessage {
	if json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	raw, _ := json.Marshal(v)
	return raw
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
