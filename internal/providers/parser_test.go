package providers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProviderList(t *testing.T) {
	refs := ParseProviderList(" OpenAI:work | upstage |openai:work| mock ")
	require.Len(t, refs, 3)
	require.Equal(t, ProviderRef{Raw: "OpenAI:work", Name: "openai", KeyAlias: "work"}, refs[0])
	require.Equal(t, "upstage", refs[1].String())
	require.Equal(t, "mock", refs[2].Name)
}

func TestParseProviderListDefaultsToMock(t *testing.T) {
	for _, raw := range []string{"", " | ", ":alias"} {
		refs := ParseProviderList(raw)
		require.Len(t, refs, 1, raw)
		require.Equal(t, "mock", refs[0].Name)
	}
}

func TestCheckCapability(t *testing.T) {
	require.NoError(t, checkCapability(ProviderRef{Raw: "groq", Name: "groq"}, canGenerate))
	require.ErrorContains(t, checkCapability(ProviderRef{Raw: "groq", Name: "groq"}, canEmbed), "does not support embeddings")
	require.ErrorContains(t, checkCapability(ProviderRef{Raw: "ollama:nomic", Name: "ollama"}, canGenerate), "does not support llm")
	require.ErrorContains(t, checkCapability(ProviderRef{Raw: "cohere", Name: "cohere"}, canEmbed), "unsupported provider")
}
