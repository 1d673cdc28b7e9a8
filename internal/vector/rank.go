package vector

import (
	"sort"

	"paperchat/internal/models"
)

// MergeTopK merges per-document result lists, given in the order the
// documents appear in the query scope, and keeps the k best. Order is score
// descending, then scope position, then chunk index.
func MergeTopK(perDocument [][]models.ChunkResult, k int) []models.ChunkResult {
	type ranked struct {
		r     models.ChunkResult
		scope int
	}
	all := make([]ranked, 0)
	for scope, results := range perDocument {
		for _, r := range results {
			all = append(all, ranked{r: r, scope: scope})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.r.Score != b.r.Score {
			return a.r.Score > b.r.Score
		}
		if a.scope != b.scope {
			return a.scope < b.scope
		}
		return a.r.ChunkIndex < b.r.ChunkIndex
	})
	if k > 0 && len(all) > k {
		all = all[:k]
	}
	out := make([]models.ChunkResult, len(all))
	for i := range all {
		out[i] = all[i].r
	}
	return out
}
