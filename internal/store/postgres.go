// Package store persists document snapshots and the accepted operation log
// in PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"collab-sync/pkg/ot"
)

// ErrNotFound is returned when a document has no persisted snapshot.
var ErrNotFound = errors.New("store: document not found")

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	revision   BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS operations (
	document_id TEXT NOT NULL,
	revision    BIGINT NOT NULL,
	operation   JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (document_id, revision)
);
`

// SnapshotStore reads and writes document state through a SQL connection
// pool.
type SnapshotStore struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and prepares the schema.
func Open(ctx context.Context, dsn string) (*SnapshotStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	s := &SnapshotStore{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return s, nil
}

// Close releases the connection pool.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// LoadSnapshot returns a document's persisted content and revision.
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, docID string) (string, uint64, error) {
	var row struct {
		Content  string `db:"content"`
		Revision uint64 `db:"revision"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT content, revision FROM documents WHERE id = $1`, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, ErrNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("store: load snapshot: %w", err)
	}
	return row.Content, row.Revision, nil
}

// SaveSnapshot upserts a document's content and revision.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, docID string, content string, revision uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, content, revision, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    revision = EXCLUDED.revision,
		    updated_at = EXCLUDED.updated_at`,
		docID, content, revision, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save snapshot: %w", err)
	}
	return nil
}

// AppendOperation records an accepted operation under its revision.
func (s *SnapshotStore) AppendOperation(ctx context.Context, docID string, revision uint64, op *ot.TextOperation) error {
	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("store: marshal operation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO operations (document_id, revision, operation, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id, revision) DO NOTHING`,
		docID, revision, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: append operation: %w", err)
	}
	return nil
}

// OperationsSince replays the persisted log from a revision, oldest first.
func (s *SnapshotStore) OperationsSince(ctx context.Context, docID string, revision uint64) ([]*ot.TextOperation, error) {
	var rows []struct {
		Operation []byte `db:"operation"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT operation FROM operations
		WHERE document_id = $1 AND revision > $2
		ORDER BY revision`,
		docID, revision)
	if err != nil {
		return nil, fmt.Errorf("store: load operations: %w", err)
	}
	ops := make([]*ot.TextOperation, len(rows))
	for i, row := range rows {
		op := &ot.TextOperation{}
		if err := json.Unmarshal(row.Operation, op); err != nil {
			return nil, fmt.Errorf("store: decode operation: %w", err)
		}
		ops[i] = op
	}
	return ops, nil
}
