package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"oairag/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// SearchFilters narrows a similarity search. DocumentName matches cmetadata.document_name.
type SearchFilters struct {
	DocumentName string
}

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks ranks a collection's chunks by cosine distance to queryVec.
func (s *Searcher) SearchChunks(ctx context.Context, collectionID string, queryVec []float32, topK int, filters SearchFilters) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 4
	}
	args := []any{collectionID, pgvector.NewVector(queryVec), topK}

	filterSQL := ""
	if name := strings.TrimSpace(filters.DocumentName); name != "" {
		filterSQL = " AND e.cmetadata ->> 'document_name' = $4"
		args = append(args, name)
	}

	query := `
SELECT e.id::text,
       e.document_id::text,
       e.document,
       e.cmetadata,
       1 - (e.embedding <=> $2) AS score
FROM embeddings e
WHERE e.collection_id = $1` + filterSQL + `
ORDER BY e.embedding <=> $2
LIMIT $3`

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkResult, 0, topK)
	for rows.Next() {
		var r models.ChunkResult
		var meta []byte
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Text, &meta, &r.Score); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode chunk metadata: %w", err)
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}
