// ABOUTME: Tests for KV implementations and the quota wrapper.
// ABOUTME: Runs the same contract checks against SQLite, Badger and memory stores.
package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens a SQLite database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func kvBackends(t *testing.T) map[string]KV {
	t.Helper()

	mem, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	onDisk, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = onDisk.Close() })

	return map[string]KV{
		"sqlite":        setupTestDB(t),
		"badger-memory": mem,
		"badger-disk":   onDisk,
		"memory":        NewMemory(),
	}
}

func TestKVContract(t *testing.T) {
	for name, kv := range kvBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.GetItem("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, kv.SetItem("a", `{"x":1}`))
			require.NoError(t, kv.SetItem("b", "plain"))
			require.NoError(t, kv.SetItem("a", `{"x":2}`))

			v, ok, err := kv.GetItem("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"x":2}`, v)

			keys, err := kv.Keys()
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"a", "b"}, keys)

			require.NoError(t, kv.RemoveItem("a"))
			require.NoError(t, kv.RemoveItem("never-there"))

			_, ok, err = kv.GetItem("a")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.SetItem("k", "v"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.GetItem("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestBadgerClosed(t *testing.T) {
	b, err := OpenBadgerInMemory()
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	err = b.SetItem("k", "v")
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestQuotaRejectsOverflow(t *testing.T) {
	q, err := NewQuota(NewMemory(), 20)
	require.NoError(t, err)

	require.NoError(t, q.SetItem("k1", "12345678")) // 10 bytes
	err = q.SetItem("k2", "1234567890")            // 12 bytes, total 22
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.Equal(t, 10, q.Used())

	_, ok, _ := q.GetItem("k2")
	assert.False(t, ok, "rejected write must not reach the store")
}

func TestQuotaRemoveFreesSpace(t *testing.T) {
	q, err := NewQuota(NewMemory(), 20)
	require.NoError(t, err)

	require.NoError(t, q.SetItem("k1", "12345678"))
	require.NoError(t, q.RemoveItem("k1"))
	require.NoError(t, q.SetItem("k2", "123456789012345678"))
	assert.Equal(t, 20, q.Used())
}

func TestQuotaOverwriteCountsOnce(t *testing.T) {
	q, err := NewQuota(NewMemory(), 12)
	require.NoError(t, err)

	require.NoError(t, q.SetItem("k", "123456789"))
	require.NoError(t, q.SetItem("k", "abcdefghi"))
	assert.Equal(t, 10, q.Used())
}

func TestQuotaMeasuresExistingData(t *testing.T) {
	mem := NewMemory()
	require.NoError(t, mem.SetItem("abc", "defgh"))

	q, err := NewQuota(mem, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, q.Used())
	require.NoError(t, q.SetItem("big", string(make([]byte, 1<<16))))
}
