package vector

import (
	"testing"

	"github.com/stretchr/testify/require"

	"paperchat/internal/models"
)

func TestCosineDistance(t *testing.T) {
	d, err := CosineDistance([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	require.InDelta(t, 0, d, 1e-9)

	d, err = CosineDistance([]float32{1, 0}, []float32{-1, 0})
	require.NoError(t, err)
	require.InDelta(t, 2, d, 1e-9)

	d, err = CosineDistance([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	require.Equal(t, 1.0, d)

	_, err = CosineDistance([]float32{1}, []float32{1, 2})
	require.Error(t, err)
	_, err = CosineDistance(nil, nil)
	require.Error(t, err)
}

func TestRelevanceScoreClamped(t *testing.T) {
	require.Equal(t, 1.0, RelevanceScore(0))
	require.Equal(t, 0.0, RelevanceScore(1.5))
	require.InDelta(t, 0.75, RelevanceScore(0.25), 1e-9)
}

func TestMergeTopKOrdering(t *testing.T) {
	docA := []models.ChunkResult{
		{DocumentID: "a", ChunkIndex: 3, Score: 0.9},
		{DocumentID: "a", ChunkIndex: 1, Score: 0.5},
	}
	docB := []models.ChunkResult{
		{DocumentID: "b", ChunkIndex: 0, Score: 0.9},
		{DocumentID: "b", ChunkIndex: 2, Score: 0.7},
	}
	got := MergeTopK([][]models.ChunkResult{docB, docA}, 3)
	require.Len(t, got, 3)
	// equal scores resolve by scope position: b was listed first
	require.Equal(t, "b", got[0].DocumentID)
	require.Equal(t, "a", got[1].DocumentID)
	require.Equal(t, 0.7, got[2].Score)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestMergeTopKChunkIndexTieBreak(t *testing.T) {
	doc := []models.ChunkResult{
		{DocumentID: "a", ChunkIndex: 4, Score: 0.5},
		{DocumentID: "a", ChunkIndex: 2, Score: 0.5},
	}
	got := MergeTopK([][]models.ChunkResult{doc}, 10)
	require.Equal(t, 2, got[0].ChunkIndex)
	require.Equal(t, 4, got[1].ChunkIndex)
	require.Empty(t, MergeTopK(nil, 5))
}
