// ABOUTME: Versioned SQLite schema for the kv cache table and the server's document table.
// ABOUTME: Each migration runs once, in order, and bumps PRAGMA user_version.
package storage

import (
	"context"
	"fmt"
)

// migrations[i] upgrades a database from version i to i+1.
var migrations = []string{
	// 1: local cache keys and per-user server documents.
	`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS nutrition_documents (
		user_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`,
}

func schemaVersion() int {
	return len(migrations)
}

// migrate applies pending migrations in one transaction. A file from a newer
// build is refused rather than written with an older layout.
func (d *DB) migrate(ctx context.Context) error {
	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > schemaVersion() {
		return fmt.Errorf("%s is at version %d, this build knows %d: %w", d.dbPath, current, schemaVersion(), ErrSchemaTooNew)
	}
	if current == schemaVersion() {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := current; v < schemaVersion(); v++ {
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			return fmt.Errorf("migrate schema to version %d: %w", v+1, err)
		}
	}
	// PRAGMA takes no bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion())); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
