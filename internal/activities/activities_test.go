package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"paperchat/internal/extract"
	"paperchat/internal/models"
	"paperchat/internal/pipeline"
	"paperchat/internal/providers"
	"paperchat/internal/storage"
	"paperchat/internal/testutil"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
)

type activityFixture struct {
	docs    *storage.MemoryDocumentStore
	vectors *storage.MemoryVectorStore
	acts    *Activities
	staging string
}

func newActivityFixture(t *testing.T) *activityFixture {
	t.Helper()
	docs := storage.NewMemoryDocumentStore()
	vectors := storage.NewMemoryVectorStore()
	proc := pipeline.NewProcessor(docs, vectors, extract.NewPDFExtractor(), providers.NewMockProvider(32),
		pipeline.Options{ChunkSize: 200, ChunkOverlap: 40, BatchSize: 2, DataOutRoot: t.TempDir()}, nil)
	staging := t.TempDir()
	return &activityFixture{docs: docs, vectors: vectors, acts: New(proc, docs, staging), staging: staging}
}

func (f *activityFixture) upload(t *testing.T, pages []string) models.Document {
	t.Helper()
	doc, err := f.docs.Create(context.Background(), models.Document{
		Filename: "notes.pdf",
		FilePath: testutil.WritePDF(t, pages),
		Owner:    "u",
		Status:   models.StatusProcessing,
	})
	require.NoError(t, err)
	return doc
}

func TestActivitiesProcessDocumentThroughStaging(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	f := newActivityFixture(t)
	env.RegisterActivity(f.acts)
	doc := f.upload(t, []string{
		"Cells divide through mitosis. The nucleus splits into two identical copies.",
		"Photosynthesis converts light into chemical energy inside chloroplasts of plant leaves.",
		"Enzymes speed up reactions by lowering activation energy.",
	})

	val, err := env.ExecuteActivity(f.acts.ExtractTextActivity, ExtractTextInput{DocumentID: doc.DocumentID})
	require.NoError(t, err)
	var extracted ExtractTextOutput
	require.NoError(t, val.Get(&extracted))
	require.Equal(t, 3, extracted.TotalPages)
	require.FileExists(t, filepath.Join(f.staging, doc.DocumentID, "pages.json"))

	val, err = env.ExecuteActivity(f.acts.ChunkTextActivity, ChunkTextInput{DocumentID: doc.DocumentID})
	require.NoError(t, err)
	var chunked ChunkTextOutput
	require.NoError(t, val.Get(&chunked))
	require.Positive(t, chunked.TotalChunks)
	require.Equal(t, 2, chunked.BatchSize)

	for start := 0; start < chunked.TotalChunks; start += chunked.BatchSize {
		end := min(start+chunked.BatchSize, chunked.TotalChunks)
		_, err := env.ExecuteActivity(f.acts.EmbedChunksActivity, EmbedChunksInput{DocumentID: doc.DocumentID, Start: start, End: end})
		require.NoError(t, err)
	}

	_, err = env.ExecuteActivity(f.acts.StoreChunksActivity, StoreChunksInput{DocumentID: doc.DocumentID, TotalPages: extracted.TotalPages})
	require.NoError(t, err)
	_, err = env.ExecuteActivity(f.acts.CompleteDocumentActivity, CompleteDocumentInput{
		DocumentID:  doc.DocumentID,
		TotalPages:  extracted.TotalPages,
		TotalChunks: chunked.TotalChunks,
	})
	require.NoError(t, err)

	got, err := f.docs.Get(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.Equal(t, "mock", got.EmbedProvider)
	require.Equal(t, "mock-embed-32", got.EmbedModel)
	n, err := f.vectors.CountChunks(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, chunked.TotalChunks, n)
	_, statErr := os.Stat(filepath.Join(f.staging, doc.DocumentID))
	require.True(t, os.IsNotExist(statErr))
}

func TestChunkActivityRejectsImageOnlyPDF(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	f := newActivityFixture(t)
	env.RegisterActivity(f.acts)
	doc := f.upload(t, []string{"", ""})

	_, err := env.ExecuteActivity(f.acts.ExtractTextActivity, ExtractTextInput{DocumentID: doc.DocumentID})
	if err == nil {
		_, err = env.ExecuteActivity(f.acts.ChunkTextActivity, ChunkTextInput{DocumentID: doc.DocumentID})
	}
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, ErrTypeExtraction, appErr.Type())
	require.True(t, appErr.NonRetryable())
}

func TestEmbedActivityRejectsOutOfRangeBatch(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	f := newActivityFixture(t)
	env.RegisterActivity(f.acts)
	doc := f.upload(t, []string{"Short page about cells and membranes."})

	_, err := env.ExecuteActivity(f.acts.ExtractTextActivity, ExtractTextInput{DocumentID: doc.DocumentID})
	require.NoError(t, err)
	_, err = env.ExecuteActivity(f.acts.ChunkTextActivity, ChunkTextInput{DocumentID: doc.DocumentID})
	require.NoError(t, err)

	_, err = env.ExecuteActivity(f.acts.EmbedChunksActivity, EmbedChunksInput{DocumentID: doc.DocumentID, Start: 5, End: 9})
	require.Error(t, err)
}

func TestFailAndListFailedDocuments(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	f := newActivityFixture(t)
	env.RegisterActivity(f.acts)
	doc := f.upload(t, []string{"Some text."})

	_, err := env.ExecuteActivity(f.acts.FailDocumentActivity, FailDocumentInput{DocumentID: doc.DocumentID, Message: "boom"})
	require.NoError(t, err)
	got, err := f.docs.Get(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusError, got.Status)
	require.Equal(t, "boom", got.ErrorMessage)

	val, err := env.ExecuteActivity(f.acts.ListFailedDocumentsActivity, ListFailedDocumentsInput{Owner: "u"})
	require.NoError(t, err)
	var failed ListFailedDocumentsOutput
	require.NoError(t, val.Get(&failed))
	require.Len(t, failed.Documents, 1)
	require.Equal(t, doc.DocumentID, failed.Documents[0].DocumentID)

	_, err = env.ExecuteActivity(f.acts.ResetDocumentActivity, ResetDocumentInput{DocumentID: doc.DocumentID})
	require.NoError(t, err)
	got, err = f.docs.Get(context.Background(), doc.DocumentID)
	require.NoError(t, err)
	require.Equal(t, models.StatusProcessing, got.Status)
}
