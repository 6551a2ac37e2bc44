package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/semdex/semdex/internal/model"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero left", a: []float32{0, 0}, b: []float32{1, 2}, want: 0},
		{name: "zero right", a: []float32{1, 2}, b: []float32{0, 0}, want: 0},
		{name: "length mismatch", a: []float32{1, 2}, b: []float32{1, 2, 3}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			require.False(t, math.IsNaN(float64(got)))
			require.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestRankOrdersBySimilarityDescending(t *testing.T) {
	results := []model.SearchResult{
		{Identifier: "a", Similarity: 0.2},
		{Identifier: "b", Similarity: 0.9},
		{Identifier: "c", Similarity: 0.5},
	}
	got := Rank(results, 2)
	require.Len(t, got, 2)
	require.Equal(t, "b", got[0].Identifier)
	require.Equal(t, "c", got[1].Identifier)
}

func TestRankStableOnTies(t *testing.T) {
	results := []model.SearchResult{
		{Identifier: "first", Similarity: 0.5},
		{Identifier: "second", Similarity: 0.5},
	}
	got := Rank(results, -1)
	require.Equal(t, "first", got[0].Identifier)
	require.Equal(t, "second", got[1].Identifier)
}

func TestDedupeByOwnerKeepsBestPerOwner(t *testing.T) {
	ranked := []model.SearchResult{
		{Identifier: "v1.mp4#0", Similarity: 0.9},
		{Identifier: "v2.mp4#12", Similarity: 0.8},
		{Identifier: "v1.mp4#30", Similarity: 0.7},
	}
	got := DedupeByOwner(ranked, 1)
	require.Len(t, got, 1)
	require.Equal(t, "v1.mp4#0", got[0].Identifier)
	require.InDelta(t, 0.9, got[0].Similarity, 1e-6)
}

func TestDedupeByOwnerPreservesRankOrder(t *testing.T) {
	ranked := []model.SearchResult{
		{Identifier: "v1.mp4#0", Similarity: 0.9},
		{Identifier: "v1.mp4#30", Similarity: 0.85},
		{Identifier: "v2.mp4#0", Similarity: 0.8},
		{Identifier: "v3.mp4#0", Similarity: 0.4},
	}
	got := DedupeByOwner(ranked, 3)
	require.Len(t, got, 3)
	require.Equal(t, "v1.mp4#0", got[0].Identifier)
	require.Equal(t, "v2.mp4#0", got[1].Identifier)
	require.Equal(t, "v3.mp4#0", got[2].Identifier)
}
