package storage

import (
	"context"
	"fmt"

	"oairag/internal/models"
	"oairag/internal/util"

	sq "github.com/Masterminds/squirrel"
)

type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `d.id::text, d.file_name, d.content_hash, d.process_status,
COALESCE(d.process_description, ''), COALESCE(d.collection_name, ''), COALESCE(d.summary, ''),
ARRAY(SELECT e.id::text FROM embeddings e WHERE e.document_id = d.id ORDER BY e.chunk_index),
d.created_at, d.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (models.Document, error) {
	var d models.Document
	var status string
	err := row.Scan(&d.ID, &d.FileName, &d.ContentHash, &status, &d.ProcessDescription,
		&d.CollectionName, &d.Summary, &d.Vectors, &d.CreatedAt, &d.UpdatedAt)
	d.ProcessStatus = models.ProcessStatus(status)
	if d.Vectors == nil {
		d.Vectors = []string{}
	}
	return d, err
}

// Create inserts a pending document. A duplicate file name surfaces as util.ErrConflict
// straight from the unique constraint.
func (r *DocumentRepo) Create(ctx context.Context, d models.Document) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO documents (id, file_name, content_hash, process_status)
VALUES ($1, $2, $3, 'pending')`, d.ID, d.FileName, d.ContentHash)
	return wrapErr("insert document "+d.FileName, err)
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (models.Document, error) {
	if err := validID("get document", id); err != nil {
		return models.Document{}, err
	}
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents d WHERE d.id = $1`, id))
	if err != nil {
		return models.Document{}, wrapErr("get document", err)
	}
	return d, nil
}

func (r *DocumentRepo) Count(ctx context.Context) (int, error) {
	q, args, err := psql.Select("COUNT(*)").From("documents").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count documents: %w", err)
	}
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (r *DocumentRepo) List(ctx context.Context, offset, limit int) ([]models.Document, error) {
	q, args, err := psql.Select(documentColumns).
		From("documents d").
		OrderBy("d.created_at ASC", "d.id ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list documents: %w", err)
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := []models.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// FileNamesInCollection is the membership lookup behind Collection.documents.
func (r *DocumentRepo) FileNamesInCollection(ctx context.Context, collectionName string) ([]string, error) {
	q, args, err := psql.Select("file_name").
		From("documents").
		Where(sq.Eq{"collection_name": collectionName}).
		OrderBy("file_name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build collection members: %w", err)
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list collection members: %w", err)
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection member: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection members: %w", err)
	}
	return out, nil
}

// Delete removes the document; its embeddings go with it through the foreign key.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	if err := validID("delete document", id); err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete document %s: %w", id, util.ErrNotFound)
	}
	return nil
}

// MarkError moves a pending document to error. Terminal rows are left untouched.
func (r *DocumentRepo) MarkError(ctx context.Context, id, reason string) (bool, error) {
	if reason == "" {
		reason = "ingestion failed"
	}
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE documents
SET process_status = 'error', process_description = $2, updated_at = NOW()
WHERE id = $1 AND process_status = 'pending'`, id, reason)
	if err != nil {
		return false, fmt.Errorf("mark document error: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DocumentRepo) SetSummary(ctx context.Context, id, summary string) error {
	tag, err := r.db.Pool.Exec(ctx, `UPDATE documents SET summary = $2, updated_at = NOW() WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("set document summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set document summary %s: %w", id, util.ErrNotFound)
	}
	return nil
}
