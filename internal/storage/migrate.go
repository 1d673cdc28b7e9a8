package storage

import (
	"context"
	"fmt"
	"log/slog"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

// migrations are applied in order, once each, tracked in schema_version.
// The embedding column width is filled in from the configured dimension.
var migrations = []migration{
	{
		Version:     1,
		Description: "documents, document_logs, chunks",
		SQL: `
CREATE TABLE IF NOT EXISTS documents (
  document_id   UUID PRIMARY KEY,
  filename      TEXT NOT NULL,
  owner         TEXT NOT NULL DEFAULT '',
  checksum      TEXT NOT NULL DEFAULT '',
  file_size     BIGINT NOT NULL DEFAULT 0,
  file_path     TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL,
  total_pages   INT NOT NULL DEFAULT 0,
  total_chunks  INT NOT NULL DEFAULT 0,
  error_message TEXT,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_checksum ON documents(owner, checksum);

CREATE TABLE IF NOT EXISTS document_logs (
  id          BIGSERIAL PRIMARY KEY,
  document_id UUID NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
  message     TEXT NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_document_logs_doc ON document_logs(document_id, id);

CREATE TABLE IF NOT EXISTS chunks (
  chunk_id    TEXT PRIMARY KEY,
  document_id UUID NOT NULL,
  chunk_index INT NOT NULL,
  text        TEXT NOT NULL,
  page_number INT NOT NULL DEFAULT 0,
  section     TEXT NOT NULL DEFAULT '',
  embedding   vector(%d) NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  UNIQUE (document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);`,
	},
	{
		Version:     2,
		Description: "llm_calls audit",
		SQL: `
CREATE TABLE IF NOT EXISTS llm_calls (
  call_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
  operation     TEXT NOT NULL,
  document_id   TEXT,
  provider_name TEXT NOT NULL DEFAULT '',
  model         TEXT NOT NULL DEFAULT '',
  status        TEXT NOT NULL,
  error_type    TEXT,
  latency_ms    BIGINT NOT NULL DEFAULT 0,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	},
	{
		Version:     3,
		Description: "documents embed model",
		SQL: `
ALTER TABLE documents ADD COLUMN IF NOT EXISTS embed_provider TEXT NOT NULL DEFAULT '';
ALTER TABLE documents ADD COLUMN IF NOT EXISTS embed_model TEXT NOT NULL DEFAULT '';`,
	},
}

// Migrate brings the schema up to date and returns the number of
// migrations applied.
func (d *DB) Migrate(ctx context.Context, embedDim int, logger *slog.Logger) (int, error) {
	if embedDim <= 0 {
		return 0, fmt.Errorf("embedding dimension must be positive, got %d", embedDim)
	}
	if _, err := d.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}
	var current int
	if err := d.Pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		sql := m.SQL
		if m.Version == 1 {
			sql = fmt.Sprintf(sql, embedDim)
		}
		tx, err := d.Pool.Begin(ctx)
		if err != nil {
			return applied, fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(ctx, sql); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_version(version) VALUES ($1)`, m.Version); err != nil {
			_ = tx.Rollback(ctx)
			return applied, fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(ctx); err != nil {
			return applied, fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
		logger.Info("applied migration", "version", m.Version, "description", m.Description)
		applied++
	}
	return applied, nil
}
