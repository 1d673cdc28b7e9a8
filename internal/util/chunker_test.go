package util

import (
	"strings"
	"testing"

	"paperchat/internal/models"

	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	text := "abcdefghijklmnopqrstuvwxyz"
	chunks := ChunkText(text, 10, 2)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0] != "abcdefghij" {
		t.Fatalf("unexpected first chunk: %s", chunks[0])
	}
}

func TestChunkTextPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence is here. Second sentence follows and keeps going on."
	chunks := ChunkText(text, 30, 5)
	require.Equal(t, "First sentence is here.", chunks[0])
}

func TestChunkTextPrefersParagraphOverSentence(t *testing.T) {
	text := "Alpha beta. Gamma delta\n\nepsilon zeta eta theta iota kappa"
	chunks := ChunkText(text, 30, 0)
	require.Equal(t, "Alpha beta. Gamma delta", chunks[0])
	require.True(t, strings.HasPrefix(chunks[1], "epsilon"))
}

func TestChunkTextDeterministic(t *testing.T) {
	text := strings.Repeat("Retrieval augmented generation works. ", 120)
	a := ChunkText(text, 1000, 200)
	b := ChunkText(text, 1000, 200)
	require.Equal(t, a, b)
	for _, c := range a {
		require.LessOrEqual(t, len([]rune(c)), 1000)
	}
}

func TestChunkTextBlankInput(t *testing.T) {
	require.Empty(t, ChunkText("   \n\n  ", 100, 10))
}

func TestChunkTextBadParamsFallBack(t *testing.T) {
	chunks := ChunkText("abcdef", 0, -1)
	require.Equal(t, []string{"abcdef"}, chunks)
	chunks = ChunkText("abcdefghij", 4, 4)
	require.Equal(t, []string{"abcd", "efgh", "ij"}, chunks)
}

func TestChunkPagesMajorityPage(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: strings.Repeat("a", 80), Section: "INTRODUCTION"},
		{Number: 2, Text: "Our main contribution is X. " + strings.Repeat("b", 60), Section: "METHOD"},
		{Number: 3, Text: strings.Repeat("c", 90)},
	}
	chunks := ChunkPages(pages, 100, 10)
	require.NotEmpty(t, chunks)
	require.Equal(t, 1, chunks[0].Page)
	require.Equal(t, "INTRODUCTION", chunks[0].Section)

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Text, "Our main contribution") {
			require.Equal(t, 2, c.Page)
			require.Equal(t, "METHOD", c.Section)
			found = true
		}
	}
	require.True(t, found)
	require.Equal(t, 3, chunks[len(chunks)-1].Page)

	again := ChunkPages(pages, 100, 10)
	require.Equal(t, chunks, again)
}

func TestChunkPagesSkipsEmptyPages(t *testing.T) {
	pages := []models.Page{{Number: 1, Text: ""}, {Number: 2, Text: "only text on page two"}}
	chunks := ChunkPages(pages, 100, 10)
	require.Len(t, chunks, 1)
	require.Equal(t, 2, chunks[0].Page)
}
