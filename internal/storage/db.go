// ABOUTME: SQLite handle shared by the local kv store and the sync server's documents.
// ABOUTME: Applies connection pragmas through the DSN and versions the schema with user_version.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrSchemaTooNew means the file was written by a newer nutrition build.
var ErrSchemaTooNew = errors.New("database schema is newer than this build")

// connPragmas are set on every pooled connection, not just the first one.
var connPragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// DB wraps the SQLite database connection.
type DB struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the database at dbPath and brings its schema up to date.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	d := &DB{db: db, dbPath: dbPath}

	if err := d.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	// The file only exists once the first statement has run.
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}
	return d, nil
}

func dsn(path string) string {
	q := make([]string, 0, len(connPragmas))
	for _, p := range connPragmas {
		q = append(q, "_pragma="+p)
	}
	return path + "?" + strings.Join(q, "&")
}

// SchemaVersion reports the schema version recorded in the file.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// DataDir returns $XDG_DATA_HOME/nutrition, falling back to ~/.local/share.
func DataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "nutrition")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "nutrition")
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}
