package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	fields     JSONB       NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

const (
	upsertDocumentSQL = `
INSERT INTO documents (collection, id, fields, updated_at)
VALUES ($1, $2, $3::jsonb, now())
ON CONFLICT (collection, id) DO UPDATE
SET fields = EXCLUDED.fields, updated_at = now()`

	deleteDocumentSQL = `DELETE FROM documents WHERE collection = $1 AND id = $2`
)

// PostgresStore keeps every collection in one JSONB documents table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the documents table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, documentsSchema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Scan(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fields FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		doc, err := decodeDocument(id, raw)
		if err != nil {
			return nil, fmt.Errorf("scan %s/%s: %w", collection, id, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", collection, err)
	}
	return docs, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT fields FROM documents WHERE collection = $1 AND id = $2`, collection, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeDocument(id, raw)
}

func (s *PostgresStore) Put(ctx context.Context, collection string, doc Document) error {
	raw, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, doc.ID, err)
	}
	if _, err := s.pool.Exec(ctx, upsertDocumentSQL, collection, doc.ID, raw); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx, deleteDocumentSQL, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) NewBatch(collection string) Batch {
	return &postgresBatch{pool: s.pool, collection: collection}
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type postgresBatch struct {
	ops
	pool       *pgxpool.Pool
	collection string
}

// Commit sends every queued statement in one round trip inside a
// transaction, so the batch lands entirely or not at all.
func (b *postgresBatch) Commit(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, o := range b.list {
		switch o.kind {
		case opPut:
			raw, err := json.Marshal(o.doc.Fields)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", b.collection, o.doc.ID, err)
			}
			batch.Queue(upsertDocumentSQL, b.collection, o.doc.ID, raw)
		case opDelete:
			batch.Queue(deleteDocumentSQL, b.collection, o.doc.ID)
		}
	}

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch statement %d: %w", i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func decodeDocument(id string, raw []byte) (Document, error) {
	fields := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return Document{}, fmt.Errorf("decode fields: %w", err)
		}
	}
	return Document{ID: id, Fields: fields}, nil
}
