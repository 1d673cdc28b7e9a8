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

// compatClient speaks the OpenAI chat-completions and embeddings wire format,
// which OpenAI, Upstage Solar and Groq all accept.
type compatClient struct {
	name       string
	keyName    string
	apiKey     string
	baseURL    string
	chatModel  string
	embedModel func(operation string) string
	sendDims   bool
	client     *http.Client
	logger     *slog.Logger
}

func (c *compatClient) info(model string) ProviderInfo {
	return ProviderInfo{Name: c.name, Model: model, Key: c.keyName}
}

func (c *compatClient) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	resp, err := doWithRetry(ctx, c.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, c.logger)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *compatClient) DocumentEmbedModel() string { return c.embedModel(OperationEmbedDocument) }

func (c *compatClient) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	model := c.embedModel(req.Operation)
	if c.apiKey == "" {
		return nil, c.info(model), fmt.Errorf("%s key missing for alias %q", c.name, c.keyName)
	}
	if len(req.Inputs) == 0 {
		return nil, c.info(model), fmt.Errorf("no embedding inputs")
	}
	body := map[string]any{"model": model, "input": req.Inputs}
	if c.sendDims && req.Dimension > 0 {
		body["dimensions"] = req.Dimension
	}
	payload, _ := json.Marshal(body)
	raw, err := c.post(ctx, "/embeddings", payload)
	if err != nil {
		return nil, c.info(model), fmt.Errorf("%s embedding error: %w", c.name, err)
	}
	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, c.info(model), fmt.Errorf("decode %s embedding response: %w", c.name, err)
	}
	if len(parsed.Data) != len(req.Inputs) {
		return nil, c.info(model), fmt.Errorf("%s returned %d embeddings for %d inputs", c.name, len(parsed.Data), len(req.Inputs))
	}
	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, c.info(model), nil
}

func (c *compatClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if c.apiKey == "" {
		return GenerateResponse{}, c.info(c.chatModel), fmt.Errorf("%s key missing for alias %q", c.name, c.keyName)
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = "Context:\n" + strings.Join(req.Context, "\n\n") + "\n\n" + prompt
	}
	messages := make([]map[string]string, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})
	body := map[string]any{
		"model":       c.chatModel,
		"messages":    messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	payload, _ := json.Marshal(body)
	raw, err := c.post(ctx, "/chat/completions", payload)
	if err != nil {
		return GenerateResponse{}, c.info(c.chatModel), fmt.Errorf("%s generate error: %w", c.name, err)
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, c.info(c.chatModel), fmt.Errorf("decode %s generate response: %w", c.name, err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, c.info(c.chatModel), fmt.Errorf("%s returned empty choices", c.name)
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, c.info(c.chatModel), nil
}

// OpenAIProvider uses the OpenAI REST API.
type OpenAIProvider struct {
	*compatClient
}

func NewOpenAIProvider(keyName string, timeout time.Duration, logger *slog.Logger) *OpenAIProvider {
	baseURL := strings.TrimRight(envOr("PAPERCHAT_OPENAI_BASE_URL", "https://api.openai.com/v1"), "/")
	embedModel := envOr("PAPERCHAT_OPENAI_EMBED_MODEL", "text-embedding-3-small")
	return &OpenAIProvider{&compatClient{
		name:       "openai",
		keyName:    keyName,
		apiKey:     resolveKey("OPENAI", keyName, "OPENAI_API_KEY"),
		baseURL:    baseURL,
		chatModel:  envOr("PAPERCHAT_OPENAI_MODEL", "gpt-4o-mini"),
		embedModel: func(string) string { return embedModel },
		sendDims:   true,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With("provider", "openai"),
	}}
}

// UpstageProvider uses Upstage Solar models. Documents and queries are
// embedded with the passage and query variants of the embedding model.
type UpstageProvider struct {
	*compatClient
}

func NewUpstageProvider(keyName string, timeout time.Duration, logger *slog.Logger) *UpstageProvider {
	baseURL := strings.TrimRight(envOr("UPSTAGE_BASE_URL", "https://api.upstage.ai/v1"), "/")
	passage := envOr("PAPERCHAT_UPSTAGE_PASSAGE_MODEL", "embedding-passage")
	query := envOr("PAPERCHAT_UPSTAGE_QUERY_MODEL", "embedding-query")
	return &UpstageProvider{&compatClient{
		name:      "upstage",
		keyName:   keyName,
		apiKey:    resolveKey("UPSTAGE", keyName, "UPSTAGE_API_KEY"),
		baseURL:   baseURL,
		chatModel: envOr("PAPERCHAT_UPSTAGE_MODEL", "solar-pro2"),
		embedModel: func(op string) string {
			if op == OperationEmbedQuery {
				return query
			}
			return passage
		},
		client: &http.Client{Timeout: timeout},
		logger: logger.With("provider", "upstage"),
	}}
}

func resolveKey(vendor, alias, fallbackEnv string) string {
	if alias != "" {
		if v := os.Getenv("PAPERCHAT_" + vendor + "_KEY_" + sanitizeEnvToken(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(fallbackEnv)
}

func envOr(k, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return fallback
}
