package providers

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroqProviderMissingKey(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("PAPERCHAT_GROQ_KEY_ALIAS1", "")
	p := NewGroqProvider("alias1", time.Second, slog.Default())
	require.NotNil(t, p)
	_, info, err := p.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, "groq", info.Name)
	require.Equal(t, ErrorAuth, ClassifyError(err))
}

func TestResolveKeyPrefersAlias(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "fallback")
	t.Setenv("PAPERCHAT_GROQ_KEY_TEAM_A", "aliased")
	require.Equal(t, "aliased", resolveKey("GROQ", "team-a", "GROQ_API_KEY"))
	require.Equal(t, "fallback", resolveKey("GROQ", "other", "GROQ_API_KEY"))
}
