// ABOUTME: Data migration between local storage backends.
// ABOUTME: Copies every key from a source KV to a destination KV.

package storage

import (
	"fmt"
	"os"
	"sort"
)

// MigrateSummary holds counts of migrated keys.
type MigrateSummary struct {
	Keys  int
	Bytes int
}

// MigrateData copies all keys from src to dst storage in key order.
// Existing destination keys with the same name are overwritten; the caller
// checks that dst is empty first when that matters. With dryRun set nothing
// is written, dst may be nil, and the summary reports what would be copied.
func MigrateData(src, dst KV, dryRun bool) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	keys, err := src.Keys()
	if err != nil {
		return nil, fmt.Errorf("list source keys: %w", err)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, ok, err := src.GetItem(k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		if !ok {
			continue
		}
		if !dryRun {
			if err := dst.SetItem(k, v); err != nil {
				return summary, fmt.Errorf("write %s: %w", k, err)
			}
		}
		summary.Keys++
		summary.Bytes += len(k) + len(v)
	}

	return summary, nil
}

// IsEmpty reports whether a store holds no keys.
func IsEmpty(kv KV) (bool, error) {
	keys, err := kv.Keys()
	if err != nil {
		return false, err
	}
	return len(keys) == 0, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
