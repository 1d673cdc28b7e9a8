package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"paperchat/internal/models"
	"paperchat/internal/util"
)

// DocumentRepo is the Postgres document registry.
type DocumentRepo struct {
	db *DB
}

func NewDocumentRepo(db *DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = `document_id::text, filename, owner, checksum, file_size, file_path, status,
       total_pages, total_chunks, COALESCE(error_message,''), embed_provider, embed_model, created_at, updated_at`

func scanDocument(row pgx.Row) (models.Document, error) {
	var d models.Document
	err := row.Scan(&d.DocumentID, &d.Filename, &d.Owner, &d.Checksum, &d.FileSize, &d.FilePath, &d.Status,
		&d.TotalPages, &d.TotalChunks, &d.ErrorMessage, &d.EmbedProvider, &d.EmbedModel, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *DocumentRepo) Create(ctx context.Context, doc models.Document) (models.Document, error) {
	if doc.DocumentID == "" {
		doc.DocumentID = uuid.NewString()
	}
	row := r.db.Pool.QueryRow(ctx, `
INSERT INTO documents (document_id, filename, owner, checksum, file_size, file_path, status)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
ON CONFLICT (document_id) DO NOTHING
RETURNING `+documentColumns,
		doc.DocumentID, doc.Filename, doc.Owner, doc.Checksum, doc.FileSize, doc.FilePath, models.StatusProcessing)
	out, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrDuplicate
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("insert document: %w", err)
	}
	return out, nil
}

func (r *DocumentRepo) exec(ctx context.Context, what, sql string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return util.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id, status, errMsg string) error {
	return r.exec(ctx, "update document status",
		`UPDATE documents SET status=$2, error_message=NULLIF($3,''), updated_at=NOW() WHERE document_id=$1::uuid`,
		id, status, errMsg)
}

func (r *DocumentRepo) SetCounts(ctx context.Context, id string, pages, chunks int) error {
	return r.exec(ctx, "set document counts",
		`UPDATE documents SET total_pages=$2, total_chunks=$3, updated_at=NOW() WHERE document_id=$1::uuid`,
		id, pages, chunks)
}

func (r *DocumentRepo) SetEmbedModel(ctx context.Context, id, provider, model string) error {
	return r.exec(ctx, "set document embed model",
		`UPDATE documents SET embed_provider=$2, embed_model=$3, updated_at=NOW() WHERE document_id=$1::uuid`,
		id, provider, model)
}

func (r *DocumentRepo) Complete(ctx context.Context, id string, pages, chunks int) error {
	return r.exec(ctx, "complete document",
		`UPDATE documents SET status=$2, total_pages=$3, total_chunks=$4, error_message=NULL, updated_at=NOW() WHERE document_id=$1::uuid`,
		id, models.StatusCompleted, pages, chunks)
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (models.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Document{}, util.ErrNotFound
	}
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE document_id=$1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("get document: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) List(ctx context.Context, owner string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE $1 = '' OR owner = $1
ORDER BY created_at DESC, document_id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	out := make([]models.Document, 0)
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

func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return util.ErrNotFound
	}
	return r.exec(ctx, "delete document", `DELETE FROM documents WHERE document_id=$1::uuid`, id)
}

func (r *DocumentRepo) FindByChecksum(ctx context.Context, owner, checksum string) (models.Document, error) {
	d, err := scanDocument(r.db.Pool.QueryRow(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE owner=$1 AND checksum=$2 AND status <> $3
ORDER BY created_at DESC
LIMIT 1`, owner, checksum, models.StatusError))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Document{}, util.ErrNotFound
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("find document by checksum: %w", err)
	}
	return d, nil
}

func (r *DocumentRepo) AppendLog(ctx context.Context, id, msg string) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO document_logs(document_id, message, created_at) VALUES ($1::uuid, $2, $3)`, id, msg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append document log: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Logs(ctx context.Context, id string) ([]models.LogEntry, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT document_id::text, message, created_at FROM document_logs WHERE document_id=$1::uuid ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list document logs: %w", err)
	}
	defer rows.Close()
	out := make([]models.LogEntry, 0)
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.DocumentID, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
