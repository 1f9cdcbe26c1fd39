package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/reoring/schemaform/schema"
)

// PutSchema inserts a schema or replaces it, bumping its version.
func (s *Store) PutSchema(ctx context.Context, id string, doc schema.Node) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode schema %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO schemas (id, version, document, updated_at) VALUES (?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = schemas.version + 1,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		id, string(b), s.timestamp())
	if err != nil {
		return fmt.Errorf("put schema %s: %w", id, err)
	}
	return nil
}

// PatchSchema replaces an existing schema. Unknown ids fail with ErrNotFound.
func (s *Store) PatchSchema(ctx context.Context, id string, doc schema.Node) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode schema %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE schemas SET version = version + 1, document = ?, updated_at = ? WHERE id = ?`,
		string(b), s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("patch schema %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("schema %s: %w", id, ErrNotFound)
	}
	return nil
}

// Schema returns the stored schema document.
func (s *Store) Schema(ctx context.Context, id string) (schema.Node, error) {
	n, _, err := s.SchemaVersion(ctx, id)
	return n, err
}

// SchemaVersion returns the stored schema and its version.
func (s *Store) SchemaVersion(ctx context.Context, id string) (schema.Node, int, error) {
	var (
		raw     string
		version int
	)
	err := s.db.QueryRowContext(ctx, `SELECT document, version FROM schemas WHERE id = ?`, id).Scan(&raw, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("schema %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load schema %s: %w", id, err)
	}
	n, err := schema.Load([]byte(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("decode schema %s: %w", id, err)
	}
	return n, version, nil
}
