package activities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"paperchat/internal/models"
	"paperchat/internal/pipeline"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

// Error types carried on application errors so workflows can branch on
// them without parsing messages.
const (
	ErrTypeExtraction = "ExtractionError"
	ErrTypeEmbedding  = "EmbeddingError"
	ErrTypeNotFound   = "NotFoundError"
	ErrTypeInternal   = "InternalError"
)

// Activities exposes the pipeline steps to Temporal. Intermediate results
// are staged on disk under stagingRoot so workflow payloads stay small.
type Activities struct {
	proc        *pipeline.Processor
	docs        storage.DocumentStore
	stagingRoot string
}

func New(proc *pipeline.Processor, docs storage.DocumentStore, stagingRoot string) *Activities {
	return &Activities{proc: proc, docs: docs, stagingRoot: stagingRoot}
}

func (a *Activities) ExtractTextActivity(ctx context.Context, in ExtractTextInput) (ExtractTextOutput, error) {
	pages, err := a.proc.Extract(ctx, in.DocumentID)
	if err != nil {
		return ExtractTextOutput{}, asApplicationError(err)
	}
	if err := util.WriteJSONAtomic(a.stagePath(in.DocumentID, "pages.json"), pages); err != nil {
		return ExtractTextOutput{}, err
	}
	return ExtractTextOutput{TotalPages: len(pages)}, nil
}

func (a *Activities) ChunkTextActivity(ctx context.Context, in ChunkTextInput) (ChunkTextOutput, error) {
	var pages []models.Page
	if err := readJSON(a.stagePath(in.DocumentID, "pages.json"), &pages); err != nil {
		return ChunkTextOutput{}, err
	}
	chunks, err := a.proc.Chunk(ctx, in.DocumentID, pages)
	if err != nil {
		return ChunkTextOutput{}, asApplicationError(err)
	}
	if err := util.WriteJSONAtomic(a.stagePath(in.DocumentID, "chunks.json"), chunks); err != nil {
		return ChunkTextOutput{}, err
	}
	return ChunkTextOutput{TotalChunks: len(chunks), BatchSize: a.proc.BatchSize()}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	var chunks []models.Chunk
	if err := readJSON(a.stagePath(in.DocumentID, "chunks.json"), &chunks); err != nil {
		return EmbedChunksOutput{}, err
	}
	if in.Start < 0 || in.End > len(chunks) || in.Start >= in.End {
		return EmbedChunksOutput{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("batch [%d,%d) out of range for %d chunks", in.Start, in.End, len(chunks)), ErrTypeInternal, nil)
	}
	batch := chunks[in.Start:in.End]
	activity.RecordHeartbeat(ctx, in.Start)
	if err := a.proc.EmbedBatch(ctx, in.DocumentID, batch); err != nil {
		return EmbedChunksOutput{}, asApplicationError(err)
	}
	vectors := make([][]float32, len(batch))
	for i, c := range batch {
		vectors[i] = c.Embedding
	}
	if err := util.WriteJSONAtomic(a.stagePath(in.DocumentID, batchFile(in.Start)), vectors); err != nil {
		return EmbedChunksOutput{}, err
	}
	return EmbedChunksOutput{Embedded: len(batch)}, nil
}

func (a *Activities) StoreChunksActivity(ctx context.Context, in StoreChunksInput) (StoreChunksOutput, error) {
	var chunks []models.Chunk
	if err := readJSON(a.stagePath(in.DocumentID, "chunks.json"), &chunks); err != nil {
		return StoreChunksOutput{}, err
	}
	for start := 0; start < len(chunks); start += a.proc.BatchSize() {
		var vectors [][]float32
		if err := readJSON(a.stagePath(in.DocumentID, batchFile(start)), &vectors); err != nil {
			return StoreChunksOutput{}, err
		}
		for i, v := range vectors {
			if start+i < len(chunks) {
				chunks[start+i].Embedding = v
			}
		}
	}
	if err := a.proc.Store(ctx, in.DocumentID, in.TotalPages, chunks); err != nil {
		return StoreChunksOutput{}, asApplicationError(err)
	}
	return StoreChunksOutput{Stored: len(chunks)}, nil
}

func (a *Activities) CompleteDocumentActivity(ctx context.Context, in CompleteDocumentInput) error {
	if err := a.proc.Complete(ctx, in.DocumentID, in.TotalPages, in.TotalChunks); err != nil {
		return asApplicationError(err)
	}
	return util.RemoveIfExists(a.stageDir(in.DocumentID))
}

func (a *Activities) FailDocumentActivity(ctx context.Context, in FailDocumentInput) error {
	a.proc.FailWithMessage(ctx, in.DocumentID, in.Message)
	return util.RemoveIfExists(a.stageDir(in.DocumentID))
}

func (a *Activities) ListFailedDocumentsActivity(ctx context.Context, in ListFailedDocumentsInput) (ListFailedDocumentsOutput, error) {
	docs, err := a.docs.List(ctx, in.Owner)
	if err != nil {
		return ListFailedDocumentsOutput{}, err
	}
	out := ListFailedDocumentsOutput{Documents: []FailedDocument{}}
	for _, d := range docs {
		if d.Status != models.StatusError {
			continue
		}
		// files that were removed cannot be retried
		if _, err := os.Stat(d.FilePath); err != nil {
			continue
		}
		out.Documents = append(out.Documents, FailedDocument{DocumentID: d.DocumentID, Filename: d.Filename})
	}
	return out, nil
}

func (a *Activities) ResetDocumentActivity(ctx context.Context, in ResetDocumentInput) error {
	if err := a.docs.UpdateStatus(ctx, in.DocumentID, models.StatusProcessing, ""); err != nil {
		return asApplicationError(err)
	}
	return a.docs.AppendLog(ctx, in.DocumentID, "Retrying processing")
}

func (a *Activities) stageDir(documentID string) string {
	return filepath.Join(a.stagingRoot, documentID)
}

func (a *Activities) stagePath(documentID, name string) string {
	return filepath.Join(a.stageDir(documentID), name)
}

func batchFile(start int) string {
	return fmt.Sprintf("embeddings-%06d.json", start)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read staged %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode staged %s: %w", filepath.Base(path), err)
	}
	return nil
}

// asApplicationError tags pipeline errors with a type and a user-safe
// message. Extraction and missing-document failures are not retried.
func asApplicationError(err error) error {
	msg := util.UserMessage(err)
	switch {
	case errors.Is(err, util.ErrExtraction):
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeExtraction, err)
	case errors.Is(err, util.ErrNotFound):
		return temporal.NewNonRetryableApplicationError(msg, ErrTypeNotFound, err)
	case errors.Is(err, util.ErrEmbedding):
		return temporal.NewApplicationErrorWithCause(msg, ErrTypeEmbedding, err)
	default:
		if strings.TrimSpace(msg) == "" {
			msg = "processing failed"
		}
		return temporal.NewApplicationErrorWithCause(msg, ErrTypeInternal, err)
	}
}
