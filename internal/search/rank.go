// Package search implements the similarity metric and ranking policy shared
// by every embedding store backend.
package search

import (
	"math"
	"sort"

	"github.com/semdex/semdex/internal/model"
)

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero-norm vectors score 0 rather than propagating NaN.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Rank sorts results by similarity descending and truncates to topK.
// The sort is stable so ties keep their enumeration order.
func Rank(results []model.SearchResult, topK int) []model.SearchResult {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK >= 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

// DedupeByOwner keeps only the highest-ranked result per owning file,
// preserving rank order, then truncates to topK. Input must already be
// ranked; callers over-fetch (2x topK) so deduping does not starve the
// final list.
func DedupeByOwner(ranked []model.SearchResult, topK int) []model.SearchResult {
	seen := make(map[string]struct{}, len(ranked))
	out := make([]model.SearchResult, 0, topK)
	for _, r := range ranked {
		owner := model.OwnerOf(r.Identifier)
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		out = append(out, r)
		if topK >= 0 && len(out) >= topK {
			break
		}
	}
	return out
}
