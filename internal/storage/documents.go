// ABOUTME: Per-user nutrition documents stored by the reference sync server.
// ABOUTME: One JSON snapshot per user plus the server-assigned updated_at.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/nutrition/internal/models"
)

// Document is the server's copy of one user's snapshot.
type Document struct {
	UserID    string
	Snapshot  models.Snapshot
	UpdatedAt time.Time
}

// DocumentRepository stores the server side of the sync protocol.
type DocumentRepository interface {
	// GetDocument returns nil and no error when the user has no document yet.
	GetDocument(ctx context.Context, userID string) (*Document, error)
	PutDocument(ctx context.Context, doc *Document) error
}

// GetDocument loads a user's document.
func (d *DB) GetDocument(ctx context.Context, userID string) (*Document, error) {
	var raw, updatedAt string
	err := d.db.QueryRowContext(ctx,
		"SELECT document, updated_at FROM nutrition_documents WHERE user_id = ?", userID,
	).Scan(&raw, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	doc := &Document{UserID: userID}
	if err := json.Unmarshal([]byte(raw), &doc.Snapshot); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Snapshot.DailyLogs == nil {
		doc.Snapshot.DailyLogs = make(map[string]models.DailyLog)
	}
	doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return doc, nil
}

// PutDocument replaces a user's document.
func (d *DB) PutDocument(ctx context.Context, doc *Document) error {
	raw, err := json.Marshal(doc.Snapshot)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO nutrition_documents (user_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at`,
		doc.UserID, string(raw), doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}
