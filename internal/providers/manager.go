package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"paperchat/internal/config"
	"paperchat/internal/util"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// CallRecord describes one provider call for the audit trail.
type CallRecord struct {
	Operation    string
	DocumentID   string
	ProviderName string
	Model        string
	Status       string
	ErrorType    ErrorType
	Latency      time.Duration
}

type CallRecorder func(ctx context.Context, rec CallRecord)

// Manager fans requests out over the configured providers in preferred
// order. Providers that report quota exhaustion are benched for the
// configured cooldown; other failures bench them briefly.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
	dim            int
	callTimeout    time.Duration
	cooldown       time.Duration
	limiter        *RateLimiter
	logger         *slog.Logger
	recorder       CallRecorder

	mu       sync.Mutex
	disabled map[string]time.Time
	now      func() time.Time
}

func NewManager(cfg config.Config, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.HTTPTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	m := &Manager{
		dim:         cfg.EmbedDim,
		callTimeout: timeout,
		cooldown:    time.Duration(cfg.ProviderCooldownSecs) * time.Second,
		limiter:     NewRateLimiter(cfg.EmbedRatePerSec),
		logger:      logger.With("component", "providers"),
		disabled:    map[string]time.Time{},
		now:         time.Now,
	}
	for _, ref := range ParseProviderList(cfg.LLMProviders) {
		if err := checkCapability(ref, canGenerate); err != nil {
			return nil, err
		}
		p, err := buildProvider(ref, cfg.EmbedDim, timeout, m.logger)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support llm", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range ParseProviderList(cfg.EmbedProviders) {
		if err := checkCapability(ref, canEmbed); err != nil {
			return nil, err
		}
		p, err := buildProvider(ref, cfg.EmbedDim, timeout, m.logger)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	return m, nil
}

// NewManagerWith builds a manager around explicit providers.
func NewManagerWith(dim int, llms []NamedLLMProvider, embeds []NamedEmbedProvider, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		llmProviders:   llms,
		embedProviders: embeds,
		dim:            dim,
		callTimeout:    30 * time.Second,
		cooldown:       15 * time.Minute,
		limiter:        NewRateLimiter(0),
		logger:         logger,
		disabled:       map[string]time.Time{},
		now:            time.Now,
	}
}

func (m *Manager) SetRecorder(r CallRecorder) { m.recorder = r }

func (m *Manager) Dimension() int { return m.dim }

func (m *Manager) EmbedCount() int { return len(m.embedProviders) }

func (m *Manager) LLMCount() int { return len(m.llmProviders) }

// Embed returns exactly one vector of the configured dimension per input.
func (m *Manager) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	if len(req.Inputs) == 0 {
		return nil, ProviderInfo{}, nil
	}
	req.Dimension = m.dim
	candidates := m.embedCandidates(req)
	if len(candidates) == 0 {
		if req.Provider != "" {
			return nil, ProviderInfo{}, fmt.Errorf("%w: embedding model %s/%s is not configured", util.ErrEmbedding, req.Provider, req.Model)
		}
		return nil, ProviderInfo{}, fmt.Errorf("%w: no embedding providers configured", util.ErrEmbedding)
	}
	order := m.available("embed-", candidates, func(i int) string { return m.embedProviders[i].Ref.Raw })
	var lastErr error
	for _, idx := range order {
		named := m.embedProviders[idx]
		key := "embed-" + named.Ref.Raw
		if err := m.limiter.Wait(ctx); err != nil {
			return nil, ProviderInfo{}, fmt.Errorf("%w: %w", util.ErrEmbedding, err)
		}
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		vectors, info, err := named.Provider.Embed(callCtx, req)
		cancel()
		info.Name = named.Ref.Name
		if err == nil {
			err = checkVectors(vectors, len(req.Inputs), m.dim)
		}
		if err == nil && req.Model != "" && req.Operation != OperationEmbedQuery && info.Model != req.Model {
			err = fmt.Errorf("provider embedded with %s, document is pinned to %s", info.Model, req.Model)
		}
		m.record(ctx, req.Operation, info, err, time.Since(start))
		if err == nil {
			return vectors, info, nil
		}
		lastErr = err
		m.bench(key, err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("all embed providers exhausted")
	}
	return nil, ProviderInfo{}, fmt.Errorf("%w: %w", util.ErrEmbedding, lastErr)
}

func (m *Manager) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	order := m.available("llm-", m.PreferredLLMOrder(), func(i int) string { return m.llmProviders[i].Ref.Raw })
	if len(order) == 0 {
		return GenerateResponse{}, ProviderInfo{}, fmt.Errorf("%w: no llm providers configured", util.ErrGeneration)
	}
	var lastErr error
	for _, idx := range order {
		named := m.llmProviders[idx]
		key := "llm-" + named.Ref.Raw
		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, m.callTimeout)
		resp, info, err := named.Provider.Generate(callCtx, req)
		cancel()
		if err == nil && strings.TrimSpace(resp.Text) == "" {
			err = errors.New("empty completion")
		}
		m.record(ctx, req.Operation, info, err, time.Since(start))
		if err == nil {
			return resp, info, nil
		}
		lastErr = err
		m.bench(key, err)
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("all llm providers exhausted")
	}
	return GenerateResponse{}, ProviderInfo{}, fmt.Errorf("%w: %w", util.ErrGeneration, lastErr)
}

// embedCandidates is the preferred embedding order, narrowed to the pinned
// provider and model when the request carries one.
func (m *Manager) embedCandidates(req EmbedRequest) []int {
	order := m.PreferredEmbedOrder()
	if req.Provider == "" {
		return order
	}
	out := make([]int, 0, len(order))
	for _, idx := range order {
		named := m.embedProviders[idx]
		if named.Ref.Name != req.Provider {
			continue
		}
		if dm, ok := named.Provider.(DocumentModeler); ok && req.Model != "" && dm.DocumentEmbedModel() != req.Model {
			continue
		}
		out = append(out, idx)
	}
	return out
}

func checkVectors(vectors [][]float32, want, dim int) error {
	if len(vectors) != want {
		return fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), want)
	}
	for i, v := range vectors {
		if dim > 0 && len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

func (m *Manager) record(ctx context.Context, op string, info ProviderInfo, err error, latency time.Duration) {
	rec := CallRecord{Operation: op, ProviderName: info.Name, Model: info.Model, Status: "ok", Latency: latency}
	if err != nil {
		rec.Status = "failed"
		rec.ErrorType = ClassifyError(err)
		m.logger.Warn("provider call failed", "operation", op, "provider", info.Name, "error_type", rec.ErrorType, "error", err)
	}
	if m.recorder != nil {
		m.recorder(ctx, rec)
	}
}

func (m *Manager) bench(key string, err error) {
	var d time.Duration
	switch ClassifyError(err) {
	case ErrorQuota, ErrorAuth:
		d = m.cooldown
	case ErrorRate:
		d = 2 * time.Minute
		if strings.HasPrefix(key, "embed-") {
			m.limiter.Backoff(5 * time.Second)
		}
	case ErrorTransient, ErrorContext:
		return
	default:
		d = time.Minute
	}
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.disabled[key] = m.now().Add(d)
	m.mu.Unlock()
}

// available drops benched providers from order. When every provider is
// benched the full order is returned so a request is still attempted.
func (m *Manager) available(prefix string, order []int, rawAt func(i int) string) []int {
	out := make([]int, 0, len(order))
	for _, idx := range order {
		if !m.isDisabled(prefix + rawAt(idx)) {
			out = append(out, idx)
		}
	}
	if len(out) == 0 {
		return order
	}
	return out
}

func (m *Manager) isDisabled(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.disabled[key]
	if !ok {
		return false
	}
	if m.now().After(until) {
		delete(m.disabled, key)
		return false
	}
	return true
}

func (m *Manager) PreferredLLMOrder() []int {
	return preferredOrder(len(m.llmProviders), func(i int) string { return strings.ToLower(m.llmProviders[i].Ref.Name) })
}

func (m *Manager) PreferredEmbedOrder() []int {
	return preferredOrder(len(m.embedProviders), func(i int) string { return strings.ToLower(m.embedProviders[i].Ref.Name) })
}

// preferredOrder puts real providers ahead of the mock one.
func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func (m *Manager) EmbedProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.embedProviders))
	for i := range m.embedProviders {
		out = append(out, m.embedProviders[i].Ref)
	}
	return out
}

func (m *Manager) LLMProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.llmProviders))
	for i := range m.llmProviders {
		out = append(out, m.llmProviders[i].Ref)
	}
	return out
}

func buildProvider(ref ProviderRef, dim int, timeout time.Duration, logger *slog.Logger) (any, error) {
	switch ref.Name {
	case "mock":
		return NewMockProvider(dim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, timeout, logger), nil
	case "upstage":
		return NewUpstageProvider(ref.KeyAlias, timeout, logger), nil
	case "ollama":
		return NewOllamaEmbeddingProvider(ref.KeyAlias, timeout, logger), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
