package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestMockEmbedSharesTerms(t *testing.T) {
	m := NewMockProvider(256)
	vecs, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{
		"photosynthesis converts light energy",
		"how does photosynthesis use light",
		"the treaty was signed in paris",
	}})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Len(t, vecs[0], 256)
	require.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
	require.InDelta(t, 1.0, dot(vecs[0], vecs[0]), 1e-4)

	again, _, _ := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"photosynthesis converts light energy"}})
	require.Equal(t, vecs[0], again[0])
}

func TestMockGenerateUsesContext(t *testing.T) {
	m := NewMockProvider(8)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Context: []string{"Mitochondria make ATP. More text."}})
	require.NoError(t, err)
	require.True(t, strings.Contains(resp.Text, "Mitochondria make ATP."))
}
