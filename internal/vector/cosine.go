package vector

import (
	"fmt"
	"math"
)

// CosineDistance returns 1 - cos(a, b) in [0, 2]. Zero vectors sit at
// distance 1.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1, nil
	}
	d := 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
	return math.Min(math.Max(d, 0), 2), nil
}

// RelevanceScore maps a cosine distance onto [0, 1].
func RelevanceScore(distance float64) float64 {
	return math.Min(math.Max(1-distance, 0), 1)
}
