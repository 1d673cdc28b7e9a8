package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
)

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Searcher runs nearest-neighbour queries against the chunks table using the
// pgvector cosine operator.
type Searcher struct {
	q Queryer
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchDocument returns up to topK chunks of one document closest to
// queryVec, best first.
func (s *Searcher) SearchDocument(ctx context.Context, documentID string, queryVec []float32, topK int) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.q.Query(ctx, `
SELECT document_id::text, chunk_id, chunk_index, text, page_number, section,
       embedding <=> $2 AS distance
FROM chunks
WHERE document_id = $1::uuid
ORDER BY embedding <=> $2, chunk_index
LIMIT $3`, documentID, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkResult, 0, topK)
	for rows.Next() {
		var (
			r        models.ChunkResult
			distance float64
		)
		if err := rows.Scan(&r.DocumentID, &r.ChunkID, &r.ChunkIndex, &r.Text, &r.PageNumber, &r.Section, &distance); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		r.Score = RelevanceScore(distance)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return results, nil
}
