package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/providers"
	"paperchat/internal/storage"
	"paperchat/internal/util"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(providers.GenerateResponse), providers.ProviderInfo{Name: "mock"}, args.Error(1)
}

type errEmbedder struct{}

func (errEmbedder) Embed(context.Context, providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	return nil, providers.ProviderInfo{}, errors.New("timeout")
}

const dim = 256

func seed(t *testing.T, vs *storage.MemoryVectorStore, docID string, texts map[int]string) {
	t.Helper()
	emb := providers.NewMockProvider(dim)
	chunks := make([]models.Chunk, 0, len(texts))
	for i := 0; i < len(texts); i++ {
		v, _, err := emb.Embed(context.Background(), providers.EmbedRequest{Inputs: []string{texts[i]}})
		require.NoError(t, err)
		section := ""
		if i == 1 {
			section = "Methods"
		}
		chunks = append(chunks, models.Chunk{ChunkID: docID + "-" + string(rune('a'+i)), DocumentID: docID, ChunkIndex: i, Text: texts[i], PageNumber: i + 1, Section: section, Embedding: v[0]})
	}
	require.NoError(t, vs.ReplaceChunks(context.Background(), docID, chunks))
}

func corpus() map[int]string {
	return map[int]string{
		0: "The study surveys coral reefs in the Pacific ocean.",
		1: "We measured water temperature with calibrated sensors every hour.",
		2: "Results show bleaching increases with temperature.",
		3: "Funding was provided by the marine institute.",
		4: "Coral recovery took several years after bleaching events.",
		5: "Appendix lists the sensor serial numbers.",
		6: "The authors thank the diving team.",
	}
}

func TestAskSingleDocument(t *testing.T) {
	vs := storage.NewMemoryVectorStore()
	seed(t, vs, "d1", corpus())
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req providers.GenerateRequest) bool {
		return req.Temperature == 0.1 && req.MaxTokens == 1000 && req.Operation == providers.OperationChat &&
			len(req.Context) > 0 && strings.Contains(req.Prompt, "temperature")
	})).Return(providers.GenerateResponse{Text: " Temperature drives bleaching. "}, nil).Once()

	e := NewEngine(providers.NewMockProvider(dim), gen, vs, config.DefaultPrompts(), Options{TopK: 5}, nil)
	ans, err := e.Ask(context.Background(), Question{
		Text:      "How was water temperature measured?",
		Documents: []models.Document{{DocumentID: "d1", Filename: "reef.pdf"}},
	})
	require.NoError(t, err)
	require.Equal(t, "Temperature drives bleaching.", ans.Text)
	require.LessOrEqual(t, len(ans.Sources), 5)
	require.NotEmpty(t, ans.Sources)
	require.Equal(t, 2, ans.Sources[0].PageNumber)
	require.Equal(t, "Methods", ans.Sources[0].Section)
	require.Equal(t, "reef.pdf", ans.Sources[0].Filename)
	for i, s := range ans.Sources {
		require.GreaterOrEqual(t, s.RelevanceScore, 0.0)
		require.LessOrEqual(t, s.RelevanceScore, 1.0)
		if i > 0 {
			require.GreaterOrEqual(t, ans.Sources[i-1].RelevanceScore, s.RelevanceScore)
		}
		if s.PageNumber != 2 {
			require.Equal(t, "Unknown", s.Section)
		}
	}
	gen.AssertExpectations(t)
}

func TestAskMultiDocumentPrefixAndBound(t *testing.T) {
	vs := storage.NewMemoryVectorStore()
	seed(t, vs, "d1", corpus())
	seed(t, vs, "d2", corpus())
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{Text: "ok"}, nil)

	e := NewEngine(providers.NewMockProvider(dim), gen, vs, config.DefaultPrompts(), Options{TopK: 5}, nil)
	ans, err := e.Ask(context.Background(), Question{
		Text:      "coral bleaching temperature",
		Documents: []models.Document{{DocumentID: "d2"}, {DocumentID: "d1"}},
		Multi:     true,
	})
	require.NoError(t, err)
	require.Equal(t, "[2 documents searched] ok", ans.Text)
	require.Len(t, ans.Chunks, 5)
	// identical corpora tie on score; scope order puts d2 first
	require.Equal(t, "d2", ans.Chunks[0].DocumentID)
	require.Equal(t, "d1", ans.Chunks[1].DocumentID)
}

func TestAskNoChunksSkipsGeneration(t *testing.T) {
	gen := &mockGenerator{}
	e := NewEngine(providers.NewMockProvider(dim), gen, storage.NewMemoryVectorStore(), config.DefaultPrompts(), Options{}, nil)
	ans, err := e.Ask(context.Background(), Question{Text: "anything", Documents: []models.Document{{DocumentID: "empty"}}})
	require.NoError(t, err)
	require.Equal(t, config.DefaultPrompts().NoContextAnswer, ans.Text)
	require.Empty(t, ans.Sources)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestAskErrors(t *testing.T) {
	vs := storage.NewMemoryVectorStore()
	seed(t, vs, "d1", corpus())
	docs := []models.Document{{DocumentID: "d1"}}

	e := NewEngine(providers.NewMockProvider(dim), &mockGenerator{}, vs, config.DefaultPrompts(), Options{}, nil)
	_, err := e.Ask(context.Background(), Question{Text: "  ", Documents: docs})
	require.ErrorIs(t, err, util.ErrValidation)
	_, err = e.Ask(context.Background(), Question{Text: "q"})
	require.ErrorIs(t, err, util.ErrValidation)

	e = NewEngine(errEmbedder{}, &mockGenerator{}, vs, config.DefaultPrompts(), Options{}, nil)
	_, err = e.Ask(context.Background(), Question{Text: "coral", Documents: docs})
	require.ErrorIs(t, err, util.ErrEmbedding)

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{}, errors.New("status 503: overloaded"))
	e = NewEngine(providers.NewMockProvider(dim), gen, vs, config.DefaultPrompts(), Options{}, nil)
	_, err = e.Ask(context.Background(), Question{Text: "coral", Documents: docs})
	require.ErrorIs(t, err, util.ErrGeneration)
}

func TestContextBlocksRespectBudget(t *testing.T) {
	e := NewEngine(nil, nil, nil, config.DefaultPrompts(), Options{MaxContextChars: 120}, nil)
	chunks := []models.ChunkResult{
		{PageNumber: 1, Text: strings.Repeat("a", 300)},
		{PageNumber: 2, Text: "short"},
	}
	blocks := e.contextBlocks(chunks, nil, false)
	require.Len(t, blocks, 1)
	require.Equal(t, 120, len([]rune(blocks[0])))

	e = NewEngine(nil, nil, nil, config.DefaultPrompts(), Options{MaxContextChars: 1000}, nil)
	blocks = e.contextBlocks([]models.ChunkResult{{PageNumber: 3, Section: "Intro", Text: "x"}, {PageNumber: 4, Text: "y"}}, nil, false)
	require.Equal(t, []string{"[1] [Page 3, Intro]\nx", "[2] [Page 4]\ny"}, blocks)
}

type recordingEmbedder struct {
	reqs []providers.EmbedRequest
}

func (r *recordingEmbedder) Embed(ctx context.Context, req providers.EmbedRequest) ([][]float32, providers.ProviderInfo, error) {
	r.reqs = append(r.reqs, req)
	return providers.NewMockProvider(dim).Embed(ctx, req)
}

func TestAskEmbedsQueryWithEachDocumentModel(t *testing.T) {
	vs := storage.NewMemoryVectorStore()
	seed(t, vs, "d1", corpus())
	seed(t, vs, "d2", corpus())
	seed(t, vs, "d3", corpus())
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{Text: "ok"}, nil)
	emb := &recordingEmbedder{}

	e := NewEngine(emb, gen, vs, config.DefaultPrompts(), Options{TopK: 5}, nil)
	_, err := e.Ask(context.Background(), Question{
		Text: "coral",
		Documents: []models.Document{
			{DocumentID: "d1", EmbedProvider: "openai", EmbedModel: "text-embedding-3-small"},
			{DocumentID: "d2", EmbedProvider: "mock", EmbedModel: "mock-embed-256"},
			{DocumentID: "d3", EmbedProvider: "openai", EmbedModel: "text-embedding-3-small"},
		},
		Multi: true,
	})
	require.NoError(t, err)
	require.Len(t, emb.reqs, 2)
	require.Equal(t, providers.OperationEmbedQuery, emb.reqs[0].Operation)
	require.Equal(t, "openai", emb.reqs[0].Provider)
	require.Equal(t, "text-embedding-3-small", emb.reqs[0].Model)
	require.Equal(t, "mock", emb.reqs[1].Provider)
	require.Equal(t, "mock-embed-256", emb.reqs[1].Model)
}

func TestAskMultiPrefixesSingleDocument(t *testing.T) {
	vs := storage.NewMemoryVectorStore()
	seed(t, vs, "d1", corpus())
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return(providers.GenerateResponse{Text: "ok"}, nil)
	e := NewEngine(providers.NewMockProvider(dim), gen, vs, config.DefaultPrompts(), Options{TopK: 3}, nil)

	docs := []models.Document{{DocumentID: "d1"}}
	ans, err := e.Ask(context.Background(), Question{Text: "coral", Documents: docs, Multi: true})
	require.NoError(t, err)
	require.Equal(t, "[1 documents searched] ok", ans.Text)

	ans, err = e.Ask(context.Background(), Question{Text: "coral", Documents: docs})
	require.NoError(t, err)
	require.Equal(t, "ok", ans.Text)
}
