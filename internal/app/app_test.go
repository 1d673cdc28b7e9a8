package app

import (
	"context"
	"path/filepath"
	"testing"

	"paperchat/internal/config"
	"paperchat/internal/storage"

	"github.com/stretchr/testify/require"
)

func baseConfig() config.Config {
	return config.Config{
		StoreBackend:   "memory",
		SessionBackend: "memory",
		PipelineMode:   "local",
		EmbedDim:       64,
		LLMProviders:   "mock",
		EmbedProviders: "mock",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(baseConfig()))

	cfg := baseConfig()
	cfg.PipelineMode = "temporal"
	require.Error(t, Validate(cfg))
	cfg.StoreBackend = "postgres"
	require.NoError(t, Validate(cfg))

	cfg = baseConfig()
	cfg.SessionBackend = "redis"
	require.Error(t, Validate(cfg))

	cfg = baseConfig()
	cfg.EmbedDim = 0
	require.Error(t, Validate(cfg))
}

func TestOpenBackendsMemoryAndSQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.SessionBackend = "sqlite"
	cfg.SessionDBPath = filepath.Join(t.TempDir(), "sessions.db")

	b, err := OpenBackends(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer b.Close()
	require.Nil(t, b.DB)
	require.IsType(t, &storage.MemoryDocumentStore{}, b.Documents)
	require.IsType(t, &storage.SQLiteSessionStore{}, b.Sessions)

	pm, err := NewProviders(cfg, b, nil)
	require.NoError(t, err)
	require.Equal(t, 64, pm.Dimension())
}

func TestNewProvidersRequiresBothKinds(t *testing.T) {
	cfg := baseConfig()
	cfg.EmbedProviders = ""
	b, err := OpenBackends(context.Background(), cfg, nil)
	require.NoError(t, err)
	_, err = NewProviders(cfg, b, nil)
	require.Error(t, err)
}
