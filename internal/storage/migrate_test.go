// ABOUTME: Tests for data migration between storage backends.
// ABOUTME: Covers sqlite-to-badger, badger-to-sqlite, dry runs and quota failures.
package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedKV(t *testing.T, kv KV) {
	t.Helper()
	require.NoError(t, kv.SetItem("log:2024-05-01", `{"date":"2024-05-01","meals":[]}`))
	require.NoError(t, kv.SetItem("goals", `{"calories":1800}`))
	require.NoError(t, kv.SetItem("auth:token", `"tok"`))
}

func TestMigrateDataSQLiteToBadger(t *testing.T) {
	src := setupTestDB(t)
	seedKV(t, src)

	dst, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dst.Close() })

	summary, err := MigrateData(src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Keys)

	v, ok, err := dst.GetItem("goals")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"calories":1800}`, v)

	keys, err := dst.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"log:2024-05-01", "goals", "auth:token"}, keys)
}

func TestMigrateDataRoundTrip(t *testing.T) {
	orig := NewMemory()
	seedKV(t, orig)

	badger, err := OpenBadgerInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = badger.Close() })
	back := setupTestDB(t)

	_, err = MigrateData(orig, badger, false)
	require.NoError(t, err)
	_, err = MigrateData(badger, back, false)
	require.NoError(t, err)

	for _, k := range []string{"log:2024-05-01", "goals", "auth:token"} {
		want, _, _ := orig.GetItem(k)
		got, ok, err := back.GetItem(k)
		require.NoError(t, err)
		assert.True(t, ok, k)
		assert.Equal(t, want, got, k)
	}
}

func TestMigrateDataDryRun(t *testing.T) {
	src := NewMemory()
	seedKV(t, src)
	dst := NewMemory()

	summary, err := MigrateData(src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Keys)
	assert.Greater(t, summary.Bytes, 0)

	empty, err := IsEmpty(dst)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMigrateDataEmptySource(t *testing.T) {
	summary, err := MigrateData(NewMemory(), NewMemory(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Keys)
}

func TestMigrateDataStopsOnQuota(t *testing.T) {
	src := NewMemory()
	seedKV(t, src)

	dst, err := NewQuota(NewMemory(), 20)
	require.NoError(t, err)

	summary, err := MigrateData(src, dst, false)
	require.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Less(t, summary.Keys, 3)
}

func TestIsDirNonEmpty(t *testing.T) {
	dir := t.TempDir()

	nonEmpty, err := IsDirNonEmpty(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, nonEmpty)

	nonEmpty, err = IsDirNonEmpty(dir)
	require.NoError(t, err)
	assert.False(t, nonEmpty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0600))
	nonEmpty, err = IsDirNonEmpty(dir)
	require.NoError(t, err)
	assert.True(t, nonEmpty)
}
