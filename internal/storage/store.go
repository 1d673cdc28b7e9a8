package storage

import (
	"context"

	"paperchat/internal/models"
)

// DocumentStore is the document registry.
type DocumentStore interface {
	Create(ctx context.Context, doc models.Document) (models.Document, error)
	UpdateStatus(ctx context.Context, id, status, errMsg string) error
	SetCounts(ctx context.Context, id string, pages, chunks int) error
	SetEmbedModel(ctx context.Context, id, provider, model string) error
	Complete(ctx context.Context, id string, pages, chunks int) error
	Get(ctx context.Context, id string) (models.Document, error)
	List(ctx context.Context, owner string) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
	FindByChecksum(ctx context.Context, owner, checksum string) (models.Document, error)
	AppendLog(ctx context.Context, id, msg string) error
	Logs(ctx context.Context, id string) ([]models.LogEntry, error)
}

// VectorStore holds chunk embeddings.
type VectorStore interface {
	// ReplaceChunks atomically swaps all chunks of a document for chunks.
	ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	Search(ctx context.Context, documentID string, queryVec []float32, topK int) ([]models.ChunkResult, error)
	CountChunks(ctx context.Context, documentID string) (int, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// SessionStore keeps chat sessions and their message history.
type SessionStore interface {
	// GetOrCreate returns the named session, or a new one when sessionID is
	// empty. An unknown non-empty id is ErrNotFound.
	GetOrCreate(ctx context.Context, sessionID string, documentIDs []string) (models.ChatSession, error)
	Get(ctx context.Context, sessionID string) (models.ChatSession, error)
	// Append adds all messages or none.
	Append(ctx context.Context, sessionID string, msgs ...models.ChatMessage) error
	History(ctx context.Context, sessionID string) ([]models.ChatMessage, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}
