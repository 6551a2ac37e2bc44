package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/semdex/semdex/internal/pkg/errors"
)

func TestTextProcessFileIndexesEachLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "first line\n\n  second line  \n")

	enc := &fakeEncoder{}
	st := newMemStore()
	pipe := NewTextPipeline(enc, st, nil, 0)

	require.NoError(t, pipe.ProcessFile(context.Background(), path))

	entries, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	descriptions := make([]string, 0, len(entries))
	for _, entry := range entries {
		require.True(t, strings.HasPrefix(entry.Identifier, path+"#"))
		descriptions = append(descriptions, entry.Description)
	}
	require.ElementsMatch(t, []string{"first line", "second line"}, descriptions)
	require.Equal(t, 1, enc.calls)
	require.Equal(t, 1, st.batches)
}

func TestTextProcessFileReindexReplacesUnits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, "same line\n")

	enc := &fakeEncoder{}
	st := newMemStore()
	pipe := NewTextPipeline(enc, st, nil, 0)

	require.NoError(t, pipe.ProcessFile(context.Background(), path))
	require.NoError(t, pipe.ProcessFile(context.Background(), path))

	entries, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestTextProcessFileEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.txt")
	writeFile(t, path, "   \n\n\t\n")

	enc := &fakeEncoder{}
	st := newMemStore()
	pipe := NewTextPipeline(enc, st, nil, 0)

	require.NoError(t, pipe.ProcessFile(context.Background(), path))
	require.Zero(t, enc.calls)

	entries, err := st.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestTextSearchStripsUnitSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	writeFile(t, path, "the cat sat\nan unrelated line\n")

	enc := &fakeEncoder{
		vectors: map[string][]float32{
			"the cat sat":       {1, 0, 0},
			"an unrelated line": {0, 1, 0},
		},
		query: []float32{1, 0, 0},
	}
	st := newMemStore()
	pipe := NewTextPipeline(enc, st, nil, 0)
	require.NoError(t, pipe.ProcessFile(context.Background(), path))

	results, err := pipe.Search(context.Background(), "cat", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, path, results[0].Identifier)
	require.Equal(t, "the cat sat", results[0].Description)
}

func TestTextSearchRejectsEmptyQuery(t *testing.T) {
	pipe := NewTextPipeline(&fakeEncoder{}, newMemStore(), nil, 0)
	_, err := pipe.Search(context.Background(), "   ", 5)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestExtractSnippet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	writeFile(t, path, "abc MATCH def")

	tests := []struct {
		name    string
		matched string
		halfLen int
		want    string
	}{
		{
			name:    "window inside content",
			matched: "MATCH",
			halfLen: 3,
			want:    "...bc MATCH de...",
		},
		{
			name:    "window covers whole content",
			matched: "MATCH",
			halfLen: 100,
			want:    "abc MATCH def",
		},
		{
			name:    "match at start",
			matched: "abc",
			halfLen: 2,
			want:    "abc M...",
		},
		{
			name:    "match at end",
			matched: "def",
			halfLen: 2,
			want:    "...H def",
		},
		{
			name:    "case insensitive lookup",
			matched: "match",
			halfLen: 3,
			want:    "...bc MATCH de...",
		},
		{
			name:    "unit not found falls back to unit",
			matched: "nowhere",
			halfLen: 3,
			want:    "nowhere",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, extractSnippet(path, tt.matched, tt.halfLen))
		})
	}
}

func TestExtractSnippetMissingFile(t *testing.T) {
	got := extractSnippet(filepath.Join(t.TempDir(), "gone.txt"), "the unit", 10)
	require.Equal(t, "the unit", got)
}
