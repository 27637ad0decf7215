package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"oairag/internal/models"
	"oairag/internal/util"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

var ErrNotPending = errors.New("document is no longer pending")

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// CompleteIngest writes every chunk and flips the document to complete in one
// transaction. It returns the written chunk ids in chunk order.
func (r *ChunkRepo) CompleteIngest(ctx context.Context, documentID string, collection models.Collection, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("complete ingest %s: %w", documentID, util.ErrNoExtractableText)
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx complete ingest: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode chunk metadata: %w", err)
		}
		_, err = tx.Exec(ctx, `
INSERT INTO embeddings (id, collection_id, document_id, chunk_index, document, cmetadata, custom_id, embedding)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`,
			c.ID, collection.UUID, documentID, c.ChunkIndex, c.Text, string(meta),
			fmt.Sprintf("%s:%d", documentID, c.ChunkIndex), pgvector.NewVector(c.Embedding),
		)
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("complete ingest %s: document deleted: %w", documentID, ErrNotPending)
		}
		if err != nil {
			return nil, fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
		ids = append(ids, c.ID)
	}

	tag, err := tx.Exec(ctx, `
UPDATE documents
SET process_status = 'complete', process_description = NULL, collection_name = $2, updated_at = NOW()
WHERE id = $1 AND process_status = 'pending'`, documentID, collection.Name)
	if err != nil {
		return nil, fmt.Errorf("mark document complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("complete ingest %s: %w", documentID, ErrNotPending)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit complete ingest: %w", err)
	}
	return ids, nil
}

// TextsByDocument returns chunk texts in document order.
func (r *ChunkRepo) TextsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT document
FROM embeddings
WHERE document_id = $1
ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunks by document: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0, 64)
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan chunk by document: %w", err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk by document: %w", err)
	}
	return out, nil
}
