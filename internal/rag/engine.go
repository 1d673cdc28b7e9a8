package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/util"
	"paperchat/internal/vector"
)

const (
	answerTemperature = 0.1
	answerMaxTokens   = 1000
	snippetRunes      = 200
)

type Embedder interface {
	Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error)
}

type Generator interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error)
}

type Searcher interface {
	Search(ctx context.Context, documentID string, queryVec []float32, topK int) ([]models.ChunkResult, error)
}

type Options struct {
	TopK            int
	MaxContextChars int
}

// Question scopes a query to one or more completed documents, in order.
// Multi marks a question asked across a document selection; its answer is
// prefixed with the number of documents searched even when only one
// qualified.
type Question struct {
	Text      string
	Documents []models.Document
	Multi     bool
}

func (q Question) multi() bool { return q.Multi || len(q.Documents) > 1 }

// embedPin is the provider and model a document's chunks were embedded with.
type embedPin struct {
	provider string
	model    string
}

type Answer struct {
	Text    string
	Sources []models.Source
	Chunks  []models.ChunkResult
}

// Engine answers questions from the chunks of the documents in scope.
type Engine struct {
	embedder  Embedder
	generator Generator
	searcher  Searcher
	prompts   config.Prompts
	opts      Options
	logger    *slog.Logger
}

func NewEngine(embedder Embedder, generator Generator, searcher Searcher, prompts config.Prompts, opts Options, logger *slog.Logger) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 6000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:  embedder,
		generator: generator,
		searcher:  searcher,
		prompts:   prompts,
		opts:      opts,
		logger:    logger.With("component", "rag"),
	}
}

func (e *Engine) Prompts() config.Prompts { return e.prompts }

func (e *Engine) Ask(ctx context.Context, q Question) (Answer, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return Answer{}, fmt.Errorf("%w: message must not be empty", util.ErrValidation)
	}
	if len(q.Documents) == 0 {
		return Answer{}, fmt.Errorf("%w: at least one document is required", util.ErrValidation)
	}

	// one query embedding per model in scope
	queryVecs := make(map[embedPin][]float32)
	perDoc := make([][]models.ChunkResult, 0, len(q.Documents))
	filenames := make(map[string]string, len(q.Documents))
	for _, d := range q.Documents {
		filenames[d.DocumentID] = d.Filename
		pin := embedPin{provider: d.EmbedProvider, model: d.EmbedModel}
		vec, ok := queryVecs[pin]
		if !ok {
			var err error
			if vec, err = e.embedQuery(ctx, text, pin); err != nil {
				return Answer{}, err
			}
			queryVecs[pin] = vec
		}
		res, err := e.searcher.Search(ctx, d.DocumentID, vec, e.opts.TopK)
		if err != nil {
			return Answer{}, fmt.Errorf("search %s: %w", d.DocumentID, err)
		}
		perDoc = append(perDoc, res)
	}
	chunks := vector.MergeTopK(perDoc, e.opts.TopK)

	ans := Answer{Chunks: chunks, Sources: make([]models.Source, 0, len(chunks))}
	for _, c := range chunks {
		section := c.Section
		if strings.TrimSpace(section) == "" {
			section = "Unknown"
		}
		ans.Sources = append(ans.Sources, models.Source{
			DocumentID:     c.DocumentID,
			Filename:       filenames[c.DocumentID],
			PageNumber:     c.PageNumber,
			Section:        section,
			ContentSnippet: util.SourceSnippet(c.Text, text, snippetRunes),
			RelevanceScore: c.Score,
		})
	}

	if len(chunks) == 0 {
		ans.Text = e.withScope(q, e.prompts.NoContextAnswer)
		return ans, nil
	}

	resp, info, err := e.generator.Generate(ctx, providers.GenerateRequest{
		Operation:   providers.OperationChat,
		System:      e.prompts.System,
		Prompt:      "Question: " + text + "\n\nAnswer using only the excerpts above and cite the page numbers you rely on.",
		Context:     e.contextBlocks(chunks, filenames, q.multi()),
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		return Answer{}, wrap(util.ErrGeneration, err)
	}
	e.logger.Debug("answer generated", "provider", info.Name, "model", info.Model, "chunks", len(chunks))
	ans.Text = e.withScope(q, strings.TrimSpace(resp.Text))
	return ans, nil
}

// contextBlocks renders the retrieved chunks as numbered excerpts, stopping
// once the rune budget is spent. The first excerpt is truncated rather than
// dropped so the model always sees some context.
func (e *Engine) contextBlocks(chunks []models.ChunkResult, filenames map[string]string, multi bool) []string {
	budget := e.opts.MaxContextChars
	blocks := make([]string, 0, len(chunks))
	for i, c := range chunks {
		header := fmt.Sprintf("[%d] [Page %d", i+1, c.PageNumber)
		if c.Section != "" && c.Section != "Unknown" {
			header += ", " + c.Section
		}
		if multi && filenames[c.DocumentID] != "" {
			header += ", " + filenames[c.DocumentID]
		}
		header += "]\n"
		block := header + c.Text
		n := len([]rune(block))
		if n > budget {
			if i == 0 && budget > len([]rune(header)) {
				blocks = append(blocks, string([]rune(block)[:budget]))
			}
			break
		}
		blocks = append(blocks, block)
		budget -= n
	}
	return blocks
}

func (e *Engine) embedQuery(ctx context.Context, text string, pin embedPin) ([]float32, error) {
	vecs, _, err := e.embedder.Embed(ctx, providers.EmbedRequest{
		Operation: providers.OperationEmbedQuery,
		Inputs:    []string{text},
		Provider:  pin.provider,
		Model:     pin.model,
	})
	if err != nil {
		return nil, wrap(util.ErrEmbedding, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected one query vector, got %d", util.ErrEmbedding, len(vecs))
	}
	return vecs[0], nil
}

func (e *Engine) withScope(q Question, text string) string {
	if q.multi() {
		return fmt.Sprintf("[%d documents searched] %s", len(q.Documents), text)
	}
	return text
}

func wrap(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
