package providers

import (
	"fmt"
	"strings"
)

// ProviderRef is one entry of a provider chain, written as name or
// name:alias. The alias selects a key (or, for ollama, a model).
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

func (r ProviderRef) String() string {
	if r.KeyAlias == "" {
		return r.Name
	}
	return r.Name + ":" + r.KeyAlias
}

type capability uint8

const (
	canGenerate capability = 1 << iota
	canEmbed
)

var knownProviders = map[string]capability{
	"mock":    canGenerate | canEmbed,
	"openai":  canGenerate | canEmbed,
	"upstage": canGenerate | canEmbed,
	"groq":    canGenerate,
	"ollama":  canEmbed,
}

// ParseProviderList splits a "|" separated chain such as
// "openai:work|upstage|mock". Names are lower-cased and repeated entries
// collapse to the first one. An empty chain means mock.
func ParseProviderList(raw string) []ProviderRef {
	seen := map[string]bool{}
	var out []ProviderRef
	for _, p := range strings.Split(raw, "|") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, alias, _ := strings.Cut(p, ":")
		ref := ProviderRef{
			Raw:      p,
			Name:     strings.ToLower(strings.TrimSpace(name)),
			KeyAlias: strings.TrimSpace(alias),
		}
		if ref.Name == "" || seen[ref.String()] {
			continue
		}
		seen[ref.String()] = true
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = []ProviderRef{{Raw: "mock", Name: "mock"}}
	}
	return out
}

// checkCapability reports whether the named vendor can serve the chain
// it was listed in.
func checkCapability(ref ProviderRef, want capability) error {
	caps, ok := knownProviders[ref.Name]
	if !ok {
		return fmt.Errorf("unsupported provider: %s", ref.Raw)
	}
	if caps&want == 0 {
		kind := "llm"
		if want == canEmbed {
			kind = "embeddings"
		}
		return fmt.Errorf("provider %s does not support %s", ref.Raw, kind)
	}
	return nil
}
