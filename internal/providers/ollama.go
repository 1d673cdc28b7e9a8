package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaEmbeddingProvider embeds locally through Ollama's batch /api/embed
// endpoint, e.g. with nomic-embed-text.
type OllamaEmbeddingProvider struct {
	alias     string
	baseURL   string
	model     string
	keepAlive string
	client    *http.Client
	logger    *slog.Logger
}

type ollamaEmbedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error"`
}

func NewOllamaEmbeddingProvider(alias string, timeout time.Duration, logger *slog.Logger) *OllamaEmbeddingProvider {
	return &OllamaEmbeddingProvider{
		alias:     alias,
		baseURL:   strings.TrimRight(envOr("PAPERCHAT_OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		model:     resolveOllamaEmbedModel(alias),
		keepAlive: envOr("PAPERCHAT_OLLAMA_KEEP_ALIVE", "10m"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger.With("provider", "ollama"),
	}
}

func (o *OllamaEmbeddingProvider) DocumentEmbedModel() string { return o.model }

func (o *OllamaEmbeddingProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.model, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	// Chunks longer than the model window are truncated server side
	// instead of failing the whole batch.
	payload, _ := json.Marshal(ollamaEmbedRequest{Model: o.model, Input: req.Inputs, Truncate: true, KeepAlive: o.keepAlive})
	resp, err := doWithRetry(ctx, o.client, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embed", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	}, o.logger)
	if err != nil {
		return nil, info, fmt.Errorf("ollama embedding request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, info, fmt.Errorf("read ollama embedding response: %w", err)
	}
	var parsed ollamaEmbedResponse
	decodeErr := json.Unmarshal(body, &parsed)
	if resp.StatusCode >= 400 {
		msg := parsed.Error
		if decodeErr != nil || msg == "" {
			msg = string(body)
		}
		return nil, info, fmt.Errorf("ollama embedding error %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, info, fmt.Errorf("decode ollama embedding response: %w", decodeErr)
	}
	if len(parsed.Embeddings) != len(req.Inputs) {
		return nil, info, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(req.Inputs))
	}
	out := make([][]float32, 0, len(parsed.Embeddings))
	for _, e := range parsed.Embeddings {
		out = append(out, matchDimension(e, req.Dimension))
	}
	return out, info, nil
}

func resolveOllamaEmbedModel(alias string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv("PAPERCHAT_OLLAMA_EMBED_MODEL_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		switch strings.ToLower(alias) {
		case "nomic":
			return "nomic-embed-text"
		case "bge":
			return "bge-m3"
		case "mxbai":
			return "mxbai-embed-large"
		}
		// ollama:nomic-embed-text names the model directly.
		if strings.ContainsAny(alias, "-/.") {
			return alias
		}
	}
	return envOr("PAPERCHAT_OLLAMA_EMBED_MODEL", "nomic-embed-text")
}

func sanitizeEnvToken(s string) string {
	return strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(strings.ToUpper(s))
}

// matchDimension pads with zeros or truncates so local models with a
// different native size still fit the configured vector column.
func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
