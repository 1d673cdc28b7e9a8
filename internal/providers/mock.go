package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// MockProvider is an offline provider. Embeddings are hashed bag-of-words
// vectors, so texts sharing terms land close together and retrieval in
// tests behaves like a real index.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) DocumentEmbedModel() string { return fmt.Sprintf("mock-embed-%d", m.dim) }

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	info := ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, info, err
		}
		vectors = append(vectors, bagOfWordsVector(input, dim))
	}
	return vectors, info, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	if err := ctx.Err(); err != nil {
		return GenerateResponse{}, info, err
	}
	var b strings.Builder
	if len(req.Context) == 0 {
		b.WriteString("I could not find supporting passages for this question.")
	} else {
		b.WriteString("Based on the document: ")
		b.WriteString(firstSentence(req.Context[0]))
		if len(req.Context) > 1 {
			fmt.Fprintf(&b, " (%d passages consulted)", len(req.Context))
		}
	}
	return GenerateResponse{Text: b.String()}, info, nil
}

func bagOfWordsVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len(w) < 2 {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32()%uint32(dim))] += 1
	}
	if len(words) == 0 {
		vec[0] = 1
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

func firstSentence(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if i := strings.IndexAny(s, ".!?"); i >= 0 && i < 300 {
		return s[:i+1]
	}
	if r := []rune(s); len(r) > 300 {
		return string(r[:300]) + "..."
	}
	return s
}
