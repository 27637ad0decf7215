package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"oairag/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

type CollectionRepo struct {
	db *DB
}

func NewCollectionRepo(db *DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

func scanCollection(row rowScanner) (models.Collection, error) {
	var c models.Collection
	var meta []byte
	if err := row.Scan(&c.UUID, &c.Name, &meta, &c.CreatedAt); err != nil {
		return models.Collection{}, err
	}
	c.CMetadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.CMetadata); err != nil {
			return models.Collection{}, fmt.Errorf("decode cmetadata: %w", err)
		}
	}
	return c, nil
}

func (r *CollectionRepo) Create(ctx context.Context, name string, meta map[string]any) (models.Collection, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return models.Collection{}, fmt.Errorf("encode cmetadata: %w", err)
	}
	c, err := scanCollection(r.db.Pool.QueryRow(ctx, `
INSERT INTO collections (uuid, name, cmetadata)
VALUES ($1, $2, $3::jsonb)
RETURNING uuid::text, name, cmetadata, created_at`, uuid.NewString(), name, string(raw)))
	if err != nil {
		return models.Collection{}, wrapErr("insert collection "+name, err)
	}
	return c, nil
}

// GetOrCreate resolves name against the unique constraint, so racing callers
// all end up with the same row.
func (r *CollectionRepo) GetOrCreate(ctx context.Context, name string) (models.Collection, error) {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO collections (uuid, name, cmetadata)
VALUES ($1, $2, '{}'::jsonb)
ON CONFLICT (name) DO NOTHING`, uuid.NewString(), name)
	if err != nil {
		return models.Collection{}, fmt.Errorf("get or create collection %s: %w", name, err)
	}
	return r.GetByName(ctx, name)
}

func (r *CollectionRepo) GetByName(ctx context.Context, name string) (models.Collection, error) {
	return r.getWhere(ctx, "get collection by name", sq.Eq{"name": name})
}

func (r *CollectionRepo) GetByID(ctx context.Context, id string) (models.Collection, error) {
	if err := validID("get collection", id); err != nil {
		return models.Collection{}, err
	}
	return r.getWhere(ctx, "get collection", sq.Eq{"uuid": id})
}

func (r *CollectionRepo) getWhere(ctx context.Context, op string, where sq.Eq) (models.Collection, error) {
	q, args, err := psql.Select("uuid::text", "name", "cmetadata", "created_at").
		From("collections").
		Where(where).
		ToSql()
	if err != nil {
		return models.Collection{}, fmt.Errorf("build %s: %w", op, err)
	}
	c, err := scanCollection(r.db.Pool.QueryRow(ctx, q, args...))
	if err != nil {
		return models.Collection{}, wrapErr(op, err)
	}
	return c, nil
}

func (r *CollectionRepo) Count(ctx context.Context) (int, error) {
	q, args, err := psql.Select("COUNT(*)").From("collections").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count collections: %w", err)
	}
	var n int
	if err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count collections: %w", err)
	}
	return n, nil
}

func (r *CollectionRepo) List(ctx context.Context, offset, limit int) ([]models.Collection, error) {
	q, args, err := psql.Select("uuid::text", "name", "cmetadata", "created_at").
		From("collections").
		OrderBy("created_at ASC", "name ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list collections: %w", err)
	}
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()
	out := []models.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}
