package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"paperchat/internal/extract"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

const interruptedMessage = "processing was interrupted; upload the file again"

// Embedder is satisfied by providers.Manager.
type Embedder interface {
	Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error)
}

type Options struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
	DataOutRoot  string
}

// Processor turns an uploaded PDF into stored, embedded chunks. Each step is
// exported so a durable workflow can run them as separate activities; Run
// executes them in sequence in-process.
type Processor struct {
	docs      storage.DocumentStore
	vectors   storage.VectorStore
	extractor extract.Extractor
	embedder  Embedder
	opts      Options
	logger    *slog.Logger
}

func NewProcessor(docs storage.DocumentStore, vectors storage.VectorStore, extractor extract.Extractor, embedder Embedder, opts Options, logger *slog.Logger) *Processor {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 || opts.ChunkOverlap >= opts.ChunkSize {
		opts.ChunkOverlap = opts.ChunkSize / 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		docs:      docs,
		vectors:   vectors,
		extractor: extractor,
		embedder:  embedder,
		opts:      opts,
		logger:    logger.With("component", "pipeline"),
	}
}

func (p *Processor) BatchSize() int { return p.opts.BatchSize }

// Run processes one document end to end. A failure marks the document as
// errored and removes any chunks written for it.
func (p *Processor) Run(ctx context.Context, documentID string) error {
	start := time.Now()
	pages, err := p.Extract(ctx, documentID)
	if err != nil {
		return p.Fail(ctx, documentID, err)
	}
	chunks, err := p.Chunk(ctx, documentID, pages)
	if err != nil {
		return p.Fail(ctx, documentID, err)
	}
	if err := p.Embed(ctx, documentID, chunks); err != nil {
		return p.Fail(ctx, documentID, err)
	}
	if err := p.Store(ctx, documentID, len(pages), chunks); err != nil {
		return p.Fail(ctx, documentID, err)
	}
	if err := p.Complete(ctx, documentID, len(pages), len(chunks)); err != nil {
		return p.Fail(ctx, documentID, err)
	}
	p.logger.Info("document processed", "document_id", documentID, "pages", len(pages), "chunks", len(chunks), "elapsed", time.Since(start))
	return nil
}

func (p *Processor) Extract(ctx context.Context, documentID string) ([]models.Page, error) {
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.EmbedProvider != "" || doc.EmbedModel != "" {
		if err := p.docs.SetEmbedModel(ctx, documentID, "", ""); err != nil {
			return nil, err
		}
	}
	p.logf(ctx, documentID, "Extracting text from %s", doc.Filename)
	pages, err := p.extractor.Extract(ctx, doc.FilePath)
	if err != nil {
		return nil, err
	}
	withText := 0
	for _, pg := range pages {
		if pg.Text != "" {
			withText++
		}
	}
	p.logf(ctx, documentID, "Extracted %d pages (%d with text)", len(pages), withText)
	return pages, nil
}

// Chunk is deterministic: the same pages always give the same chunks and ids.
func (p *Processor) Chunk(ctx context.Context, documentID string, pages []models.Page) ([]models.Chunk, error) {
	parts := util.ChunkPages(pages, p.opts.ChunkSize, p.opts.ChunkOverlap)
	chunks := make([]models.Chunk, 0, len(parts))
	for _, part := range parts {
		text := util.SanitizeText(part.Text)
		if text == "" {
			continue
		}
		idx := len(chunks)
		chunks = append(chunks, models.Chunk{
			ChunkID:    util.ChunkID(documentID, idx, text),
			DocumentID: documentID,
			ChunkIndex: idx,
			Text:       text,
			PageNumber: part.Page,
			Section:    part.Section,
		})
	}
	if len(chunks) == 0 {
		return nil, util.ErrNoExtractableText
	}
	p.logf(ctx, documentID, "Created %d chunks", len(chunks))
	return chunks, nil
}

// Embed fills in the embedding of every chunk, BatchSize chunks per call.
func (p *Processor) Embed(ctx context.Context, documentID string, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(chunks))
		if err := p.EmbedBatch(ctx, documentID, chunks[start:end]); err != nil {
			return err
		}
		p.logf(ctx, documentID, "Embedded chunks %d-%d of %d", start+1, end, len(chunks))
	}
	return nil
}

// EmbedBatch embeds one batch. The first batch pins the document to the
// provider and model that served it; later batches may only use that model.
func (p *Processor) EmbedBatch(ctx context.Context, documentID string, batch []models.Chunk) error {
	if len(batch) == 0 {
		return nil
	}
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	inputs := make([]string, len(batch))
	for i, c := range batch {
		inputs[i] = c.Text
	}
	vectors, info, err := p.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: providers.OperationEmbedDocument,
		Inputs:    inputs,
		Provider:  doc.EmbedProvider,
		Model:     doc.EmbedModel,
	})
	if err != nil {
		if !errors.Is(err, util.ErrEmbedding) {
			err = fmt.Errorf("%w: %w", util.ErrEmbedding, err)
		}
		return err
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("%w: got %d vectors for %d chunks", util.ErrEmbedding, len(vectors), len(batch))
	}
	if doc.EmbedProvider == "" {
		if err := p.docs.SetEmbedModel(ctx, documentID, info.Name, info.Model); err != nil {
			return err
		}
		p.logf(ctx, documentID, "Embedding with %s/%s", info.Name, info.Model)
	}
	for i := range batch {
		batch[i].Embedding = vectors[i]
	}
	return nil
}

// Store replaces the document's chunks in one transaction and checks the
// persisted count matches.
func (p *Processor) Store(ctx context.Context, documentID string, totalPages int, chunks []models.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d has no embedding", util.ErrEmbedding, c.ChunkIndex)
		}
	}
	if err := p.docs.SetCounts(ctx, documentID, totalPages, len(chunks)); err != nil {
		return err
	}
	if err := p.vectors.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	stored, err := p.vectors.CountChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("count stored chunks: %w", err)
	}
	if stored != len(chunks) {
		return fmt.Errorf("stored %d chunks, expected %d", stored, len(chunks))
	}
	p.logf(ctx, documentID, "Stored %d chunks", stored)
	if err := p.writeArtifacts(ctx, documentID, totalPages, chunks); err != nil {
		p.logger.Warn("artifact write failed", "document_id", documentID, "error", err)
	}
	return nil
}

// Complete marks the document ready. A document deleted while processing
// has its freshly written chunks purged instead.
func (p *Processor) Complete(ctx context.Context, documentID string, totalPages, totalChunks int) error {
	err := p.docs.Complete(ctx, documentID, totalPages, totalChunks)
	if errors.Is(err, util.ErrNotFound) {
		p.logger.Info("document deleted during processing; purging chunks", "document_id", documentID)
		return p.vectors.DeleteDocument(ctx, documentID)
	}
	if err != nil {
		return err
	}
	p.logf(ctx, documentID, "Processing complete")
	return nil
}

// Fail records err on the document and removes partial chunks. It returns
// err so callers can propagate it.
func (p *Processor) Fail(ctx context.Context, documentID string, cause error) error {
	p.logger.Error("document processing failed", "document_id", documentID, "error", cause)
	p.FailWithMessage(ctx, documentID, util.UserMessage(cause))
	return cause
}

// FailWithMessage marks the document as errored with an already user-safe
// message and purges its chunks.
func (p *Processor) FailWithMessage(ctx context.Context, documentID, msg string) {
	if err := p.vectors.DeleteDocument(ctx, documentID); err != nil {
		p.logger.Warn("purge chunks failed", "document_id", documentID, "error", err)
	}
	if err := p.docs.UpdateStatus(ctx, documentID, models.StatusError, msg); err != nil && !errors.Is(err, util.ErrNotFound) {
		p.logger.Warn("record failure failed", "document_id", documentID, "error", err)
	}
	p.logf(ctx, documentID, "Processing failed: %s", msg)
}

type chunkArtifact struct {
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	PageNumber int    `json:"page_number"`
	Section    string `json:"section,omitempty"`
	Text       string `json:"text"`
}

func (p *Processor) writeArtifacts(ctx context.Context, documentID string, totalPages int, chunks []models.Chunk) error {
	if p.opts.DataOutRoot == "" {
		return nil
	}
	doc, err := p.docs.Get(ctx, documentID)
	if err != nil {
		return err
	}
	base := filepath.Join(p.opts.DataOutRoot, documentID)
	if err := util.WriteJSONAtomic(filepath.Join(base, "metadata.json"), map[string]any{
		"document_id":  documentID,
		"filename":     doc.Filename,
		"checksum":     doc.Checksum,
		"total_pages":  totalPages,
		"total_chunks": len(chunks),
		"processed_at": time.Now().UTC(),
	}); err != nil {
		return err
	}
	rows := make([]chunkArtifact, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkArtifact{ChunkID: c.ChunkID, ChunkIndex: c.ChunkIndex, PageNumber: c.PageNumber, Section: c.Section, Text: c.Text}
	}
	return util.WriteJSONLinesAtomic(filepath.Join(base, "chunks.jsonl"), rows)
}

// ArtifactDir is where the document's artifacts live, or "" when
// artifacts are disabled.
func (p *Processor) ArtifactDir(documentID string) string {
	if p.opts.DataOutRoot == "" {
		return ""
	}
	return filepath.Join(p.opts.DataOutRoot, documentID)
}

func (p *Processor) logf(ctx context.Context, documentID, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.logger.Debug(msg, "document_id", documentID)
	if err := p.docs.AppendLog(ctx, documentID, msg); err != nil && !errors.Is(err, util.ErrNotFound) {
		p.logger.Warn("append document log failed", "document_id", documentID, "error", err)
	}
}
