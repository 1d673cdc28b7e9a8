package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"paperchat/internal/models"
	"paperchat/internal/vector"
)

// ChunkRepo stores chunk embeddings in a pgvector column.
type ChunkRepo struct {
	db       *DB
	searcher *vector.Searcher
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db, searcher: vector.NewSearcher(db.Pool)}
}

func (r *ChunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	docUUID, err := uuid.Parse(documentID)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", documentID, err)
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1::uuid`, documentID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, []any{c.ChunkID, docUUID, c.ChunkIndex, c.Text, c.PageNumber, c.Section, pgvector.NewVector(c.Embedding)})
	}
	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"chunks"},
			[]string{"chunk_id", "document_id", "chunk_index", "text", "page_number", "section", "embedding"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copy chunks: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("copied %d of %d chunks", n, len(rows))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) Search(ctx context.Context, documentID string, queryVec []float32, topK int) ([]models.ChunkResult, error) {
	return r.searcher.SearchDocument(ctx, documentID, queryVec, topK)
}

func (r *ChunkRepo) CountChunks(ctx context.Context, documentID string) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id=$1::uuid`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (r *ChunkRepo) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE document_id=$1::uuid`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}
