// Package app wires configured backends for the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/extract"
	"paperchat/internal/pipeline"
	"paperchat/internal/providers"
	"paperchat/internal/storage"
)

// Backends holds the stores selected by configuration.
type Backends struct {
	DB        *storage.DB
	Documents storage.DocumentStore
	Vectors   storage.VectorStore
	Sessions  storage.SessionStore

	closers []func()
}

// Ping checks the shared database, if any. Memory stores are always up.
func (b *Backends) Ping(ctx context.Context) error {
	if b.DB == nil {
		return nil
	}
	return b.DB.Ping(ctx)
}

func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// Validate rejects combinations that cannot work, such as handing documents
// to a separate worker process while keeping them in memory.
func Validate(cfg config.Config) error {
	switch strings.ToLower(cfg.StoreBackend) {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	switch strings.ToLower(cfg.SessionBackend) {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported session backend %q", cfg.SessionBackend)
	}
	switch strings.ToLower(cfg.PipelineMode) {
	case "local":
	case "temporal":
		if strings.EqualFold(cfg.StoreBackend, "memory") {
			return errors.New("temporal pipeline requires the postgres store")
		}
	default:
		return fmt.Errorf("unsupported pipeline mode %q", cfg.PipelineMode)
	}
	if cfg.EmbedDim <= 0 {
		return errors.New("embedding dimension must be positive")
	}
	return nil
}

// OpenBackends connects the document, vector and session stores. With the
// postgres store the schema is migrated before use.
func OpenBackends(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backends, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{}
	if strings.EqualFold(cfg.StoreBackend, "postgres") {
		dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := storage.NewDB(dbCtx, cfg.PostgresURL, logger)
		if err != nil {
			return nil, err
		}
		b.DB = db
		b.closers = append(b.closers, db.Close)
		if _, err := db.Migrate(dbCtx, cfg.EmbedDim, logger); err != nil {
			b.Close()
			return nil, err
		}
		b.Documents = storage.NewDocumentRepo(db)
		b.Vectors = storage.NewChunkRepo(db)
	} else {
		b.Documents = storage.NewMemoryDocumentStore()
		b.Vectors = storage.NewMemoryVectorStore()
	}

	if strings.EqualFold(cfg.SessionBackend, "sqlite") {
		s, err := storage.NewSQLiteSessionStore(cfg.SessionDBPath, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Sessions = s
		b.closers = append(b.closers, func() { _ = s.Close() })
	} else {
		b.Sessions = storage.NewMemorySessionStore()
	}
	return b, nil
}

// NewProviders builds the provider manager and, when a database is present,
// records every provider call in it.
func NewProviders(cfg config.Config, b *Backends, logger *slog.Logger) (*providers.Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pm, err := providers.NewManager(cfg, logger)
	if err != nil {
		return nil, err
	}
	if pm.EmbedCount() == 0 || pm.LLMCount() == 0 {
		return nil, errors.New("at least one llm and one embedding provider must be configured")
	}
	if b.DB != nil {
		audit := storage.NewLLMAuditRepo(b.DB)
		pm.SetRecorder(func(ctx context.Context, rec providers.CallRecord) {
			if err := audit.Insert(context.WithoutCancel(ctx), rec); err != nil {
				logger.Warn("record provider call failed", "error", err)
			}
		})
	}
	return pm, nil
}

func NewProcessor(cfg config.Config, b *Backends, embedder pipeline.Embedder, logger *slog.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(b.Documents, b.Vectors, extract.NewPDFExtractor(), embedder, pipeline.Options{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbedBatchSize,
		DataOutRoot:  cfg.DataOutRoot,
	}, logger)
}

// StagingRoot is where Temporal activities keep intermediate results.
func StagingRoot(cfg config.Config) string {
	return filepath.Join(cfg.DataOutRoot, ".staging")
}
