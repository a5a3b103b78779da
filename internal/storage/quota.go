// ABOUTME: Quota wraps a KV with a byte capacity, like browser local storage.
// ABOUTME: Writes that would exceed the capacity fail with ErrQuotaExceeded.
package storage

import (
	"fmt"
	"sync"
)

// Quota bounds the total size of keys plus values held by the wrapped KV.
type Quota struct {
	kv       KV
	capacity int

	mu    sync.Mutex
	sizes map[string]int
	used  int
}

// NewQuota wraps kv, measuring what it already holds. capacity <= 0 means unlimited.
func NewQuota(kv KV, capacity int) (*Quota, error) {
	q := &Quota{kv: kv, capacity: capacity, sizes: make(map[string]int)}

	keys, err := kv.Keys()
	if err != nil {
		return nil, fmt.Errorf("measure store: %w", err)
	}
	for _, k := range keys {
		v, ok, err := kv.GetItem(k)
		if err != nil {
			return nil, fmt.Errorf("measure store: %w", err)
		}
		if ok {
			q.sizes[k] = len(k) + len(v)
			q.used += q.sizes[k]
		}
	}
	return q, nil
}

// Used returns the bytes currently accounted for.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Capacity returns the configured limit.
func (q *Quota) Capacity() int {
	return q.capacity
}

func (q *Quota) GetItem(key string) (string, bool, error) {
	return q.kv.GetItem(key)
}

func (q *Quota) SetItem(key, value string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := len(key) + len(value)
	next := q.used - q.sizes[key] + size
	if q.capacity > 0 && next > q.capacity {
		return fmt.Errorf("set item %s (%d bytes, %d/%d used): %w", key, size, q.used, q.capacity, ErrQuotaExceeded)
	}

	if err := q.kv.SetItem(key, value); err != nil {
		return err
	}
	q.used = next
	q.sizes[key] = size
	return nil
}

func (q *Quota) RemoveItem(key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.kv.RemoveItem(key); err != nil {
		return err
	}
	q.used -= q.sizes[key]
	delete(q.sizes, key)
	return nil
}

func (q *Quota) Keys() ([]string, error) {
	return q.kv.Keys()
}

func (q *Quota) Close() error {
	return q.kv.Close()
}
