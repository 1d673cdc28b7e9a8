package providers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveOllamaEmbedModel_Default(t *testing.T) {
	t.Setenv("PAPERCHAT_OLLAMA_EMBED_MODEL", "")
	got := resolveOllamaEmbedModel("")
	if got != "nomic-embed-text" {
		t.Fatalf("expected default nomic-embed-text, got %q", got)
	}
	require.Equal(t, "bge-m3", resolveOllamaEmbedModel("bge"))
	require.Equal(t, "all-minilm:l6-v2", resolveOllamaEmbedModel("all-minilm:l6-v2"))
}

func TestMatchDimension(t *testing.T) {
	src := []float32{1, 2, 3}
	a := matchDimension(src, 2)
	if len(a) != 2 || a[0] != 1 || a[1] != 2 {
		t.Fatalf("truncate failed: %#v", a)
	}
	b := matchDimension(src, 5)
	if len(b) != 5 || b[0] != 1 || b[2] != 3 || b[3] != 0 || b[4] != 0 {
		t.Fatalf("pad failed: %#v", b)
	}
}

func TestOllamaEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var body ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, body.Truncate)
		require.Equal(t, "10m", body.KeepAlive)
		out := make([][]float32, len(body.Input))
		for i := range out {
			out[i] = []float32{1, 2, 3, 4}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": out})
	}))
	defer srv.Close()
	t.Setenv("PAPERCHAT_OLLAMA_BASE_URL", srv.URL)
	t.Setenv("PAPERCHAT_OLLAMA_KEEP_ALIVE", "")

	p := NewOllamaEmbeddingProvider("", 5*time.Second, slog.Default())
	vecs, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a", "b"}, Dimension: 3})
	require.NoError(t, err)
	require.Equal(t, "ollama", info.Name)
	require.Len(t, vecs, 2)
	require.Len(t, vecs[0], 3)
}

func TestOllamaEmbedSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"bge-m3\" not found, try pulling it first"}`))
	}))
	defer srv.Close()
	t.Setenv("PAPERCHAT_OLLAMA_BASE_URL", srv.URL)

	p := NewOllamaEmbeddingProvider("bge", 5*time.Second, slog.Default())
	_, info, err := p.Embed(context.Background(), EmbedRequest{Inputs: []string{"a"}})
	require.Error(t, err)
	require.Equal(t, "bge-m3", info.Model)
	require.Contains(t, err.Error(), "ollama embedding error 404: model \"bge-m3\" not found")
	require.Equal(t, ErrorPermanent, ClassifyError(err))
}
