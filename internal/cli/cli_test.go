package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"paperchat/internal/app"
	"paperchat/internal/config"
	"paperchat/internal/models"
	"paperchat/internal/storage"
	"paperchat/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBackends(t *testing.T) *app.Backends {
	t.Helper()
	t.Setenv("PAPERCHAT_STORE", "memory")
	t.Setenv("PAPERCHAT_SESSION_STORE", "memory")
	t.Setenv("PAPERCHAT_PIPELINE", "local")
	t.Setenv("PAPERCHAT_DATA_OUT", t.TempDir())
	b := &app.Backends{
		Documents: storage.NewMemoryDocumentStore(),
		Vectors:   storage.NewMemoryVectorStore(),
		Sessions:  storage.NewMemorySessionStore(),
	}
	prev := openBackends
	openBackends = func(context.Context, config.Config, *slog.Logger) (*app.Backends, error) { return b, nil }
	t.Cleanup(func() { openBackends = prev })
	return b
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	names := []string{}
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "migrate")
	assert.Contains(t, names, "reconcile")
	assert.Contains(t, names, "documents")
	assert.Contains(t, names, "backfill")
	assert.Contains(t, names, "providers")
}

func TestProvidersUsageNeedsPostgres(t *testing.T) {
	setupBackends(t)
	_, err := execute(t, "providers", "usage", "--since", "1h")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres store")
}

func TestDocumentsList(t *testing.T) {
	b := setupBackends(t)
	ctx := context.Background()
	_, err := b.Documents.Create(ctx, models.Document{Filename: "alpha.pdf", Owner: "alice", Status: models.StatusCompleted, TotalPages: 3})
	require.NoError(t, err)
	_, err = b.Documents.Create(ctx, models.Document{Filename: "beta.pdf", Owner: "bob"})
	require.NoError(t, err)

	out, err := execute(t, "documents", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alpha.pdf")
	assert.Contains(t, out, "beta.pdf")
	assert.Contains(t, out, "Total: 2 documents")

	listOwner = ""
	out, err = execute(t, "documents", "list", "--owner", "alice")
	listOwner = ""
	require.NoError(t, err)
	assert.Contains(t, out, "alpha.pdf")
	assert.NotContains(t, out, "beta.pdf")
}

func TestDocumentsDelete(t *testing.T) {
	b := setupBackends(t)
	ctx := context.Background()
	doc, err := b.Documents.Create(ctx, models.Document{Filename: "alpha.pdf", Owner: "alice"})
	require.NoError(t, err)

	out, err := execute(t, "documents", "delete", doc.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+doc.DocumentID)
	_, err = b.Documents.Get(ctx, doc.DocumentID)
	require.ErrorIs(t, err, util.ErrNotFound)

	_, err = execute(t, "documents", "delete", doc.DocumentID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDocumentsDeleteRequiresOneArg(t *testing.T) {
	setupBackends(t)
	_, err := execute(t, "documents", "delete")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestReconcileRequiresAssumeIdleForLocalPipeline(t *testing.T) {
	b := setupBackends(t)
	ctx := context.Background()
	doc, err := b.Documents.Create(ctx, models.Document{Filename: "stuck.pdf", Owner: "alice", Status: models.StatusProcessing})
	require.NoError(t, err)

	assumeIdle = false
	_, err = execute(t, "reconcile")
	require.Error(t, err)

	out, err := execute(t, "reconcile", "--assume-idle")
	assumeIdle = false
	require.NoError(t, err)
	assert.Contains(t, out, "failed    "+doc.DocumentID)
	got, err := b.Documents.Get(ctx, doc.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
}

func TestMigrateRequiresPostgres(t *testing.T) {
	setupBackends(t)
	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAPERCHAT_STORE=postgres")
}

func TestBackfillRequiresTemporal(t *testing.T) {
	setupBackends(t)
	_, err := execute(t, "backfill")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAPERCHAT_PIPELINE=temporal")
}
