package providers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// GroqProvider supports LLM generation via Groq's OpenAI-compatible API.
// Groq has no embeddings endpoint.
type GroqProvider struct {
	c *compatClient
}

func NewGroqProvider(keyName string, timeout time.Duration, logger *slog.Logger) *GroqProvider {
	return &GroqProvider{c: &compatClient{
		name:       "groq",
		keyName:    keyName,
		apiKey:     resolveKey("GROQ", keyName, "GROQ_API_KEY"),
		baseURL:    strings.TrimRight(envOr("PAPERCHAT_GROQ_BASE_URL", "https://api.groq.com/openai/v1"), "/"),
		chatModel:  envOr("PAPERCHAT_GROQ_MODEL", "llama-3.1-8b-instant"),
		embedModel: func(string) string { return "" },
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("provider", "groq"),
	}}
}

func (g *GroqProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	return g.c.Generate(ctx, req)
}
