package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore keeps each collection as a single JSONB row in a document table.
// The whole-snapshot contract is the same as the file store; Postgres only
// replaces the filesystem as the durable medium.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates the document table if needed and returns the store.
func NewPGStore(ctx context.Context, pool *pgxpool.Pool) (*PGStore, error) {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS document (
			name       TEXT PRIMARY KEY,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return nil, fmt.Errorf("create document table: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Load(ctx context.Context, collection string, out interface{}) (bool, error) {
	if collection == "" {
		return false, ErrInvalidCollection
	}
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM document WHERE name = $1`, collection).Scan(&body)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", collection, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", collection, err)
	}
	return true, nil
}

func (s *PGStore) Save(ctx context.Context, collection string, doc interface{}) error {
	if collection == "" {
		return ErrInvalidCollection
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", collection, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO document (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
		collection, body)
	if err != nil {
		return fmt.Errorf("save %s: %w", collection, err)
	}
	return nil
}
