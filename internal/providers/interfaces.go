package providers

import "context"

const (
	OperationEmbedDocument = "embed_document"
	OperationEmbedQuery    = "embed_query"
	OperationChat          = "chat_answer"
)

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type GenerateRequest struct {
	Operation   string   `json:"operation"`
	System      string   `json:"system"`
	Prompt      string   `json:"prompt"`
	Context     []string `json:"context"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
	// Provider and Model pin the call to the model a document was embedded
	// with. Only providers of that name embedding documents with that model
	// are tried, so failover stays between keys of one model.
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// DocumentModeler is implemented by embedding providers that know, before
// any call, which model they embed documents with.
type DocumentModeler interface {
	DocumentEmbedModel() string
}
