package pipeline

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/semdex/semdex/internal/cache"
)

func TestQuadrantRects(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   []image.Rectangle
	}{
		{
			name:   "even dimensions",
			width:  100,
			height: 100,
			want: []image.Rectangle{
				image.Rect(0, 0, 50, 50),
				image.Rect(50, 0, 100, 50),
				image.Rect(0, 50, 50, 100),
				image.Rect(50, 50, 100, 100),
			},
		},
		{
			name:   "odd dimensions give second half the extra pixel",
			width:  101,
			height: 101,
			want: []image.Rectangle{
				image.Rect(0, 0, 50, 50),
				image.Rect(50, 0, 101, 50),
				image.Rect(0, 50, 50, 101),
				image.Rect(50, 50, 101, 101),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := quadrantRects(tt.width, tt.height)
			require.Equal(t, tt.want, got)

			// Quadrants tile the image exactly.
			area := 0
			for _, r := range got {
				area += r.Dx() * r.Dy()
			}
			require.Equal(t, tt.width*tt.height, area)
		})
	}
}

func TestSplitQuadrantsColors(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	colors := []color.RGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
		{R: 255, G: 255, A: 255},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			quad := 0
			if x >= 2 {
				quad++
			}
			if y >= 2 {
				quad += 2
			}
			img.SetRGBA(x, y, colors[quad])
		}
	}

	quads := splitQuadrants(img)
	require.Len(t, quads, 4)
	for i, quad := range quads {
		b := quad.Bounds()
		require.Equal(t, 2, b.Dx())
		require.Equal(t, 2, b.Dy())
		r, g, bl, _ := quad.At(b.Min.X, b.Min.Y).RGBA()
		want := colors[i]
		require.Equal(t, uint32(want.R)*0x101, r)
		require.Equal(t, uint32(want.G)*0x101, g)
		require.Equal(t, uint32(want.B)*0x101, bl)
	}
}

func TestShrinkToFit(t *testing.T) {
	large := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	got := shrinkToFit(large, 512)
	require.LessOrEqual(t, got.Bounds().Dx(), 512)
	require.LessOrEqual(t, got.Bounds().Dy(), 512)

	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	got = shrinkToFit(small, 512)
	require.Equal(t, 100, got.Bounds().Dx())
	require.Equal(t, 50, got.Bounds().Dy())
}

func TestImageDescribeUsesCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.png")
	img := imaging.New(8, 8, color.RGBA{R: 128, A: 255})
	require.NoError(t, imaging.Save(img, path))

	disk, err := cache.NewDiskCache(t.TempDir())
	require.NoError(t, err)

	captioner := &fakeCaptioner{captions: []string{"top left", "top right", "bottom left", "bottom right"}}
	pipe := NewImagePipeline(&fakeEncoder{}, captioner, newMemStore(), disk, newMemFileStore(), nil, 0, 0)

	first, err := pipe.Describe(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "top left top right bottom left bottom right", first)
	require.Equal(t, 1, captioner.calls)

	second, err := pipe.Describe(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, captioner.calls)
}

func TestImageProcessFileStoresEntry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pic.jpg")
	img := imaging.New(16, 16, color.RGBA{B: 200, A: 255})
	require.NoError(t, imaging.Save(img, path))

	disk, err := cache.NewDiskCache(t.TempDir())
	require.NoError(t, err)

	st := newMemStore()
	pipe := NewImagePipeline(&fakeEncoder{}, &fakeCaptioner{}, st, disk, newMemFileStore(), nil, 0, 0)
	require.NoError(t, pipe.ProcessFile(context.Background(), path))

	entry, ok, err := st.Get(context.Background(), path)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, entry.Description)
	require.NotEmpty(t, entry.Embedding)
}

func TestPageKey(t *testing.T) {
	a := pageKey("/docs/report.pdf", 1)
	b := pageKey("/docs/report.pdf", 2)
	c := pageKey("/other/report.pdf", 1)

	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, a, pageKey("/docs/report.pdf", 1))
	require.Contains(t, a, "pages/")
	require.Contains(t, a, "report_page_1.jpg")
}

func TestRenderPDFPagesBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.pdf")
	writeFile(t, path, "this is not a pdf")

	type result struct {
		pages [][]byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		pages, err := renderPDFPages(path, 4)
		done <- result{pages, err}
	}()

	select {
	case res := <-done:
		require.Error(t, res.err)
		require.Nil(t, res.pages)
	case <-time.After(5 * time.Second):
		t.Fatal("renderPDFPages did not return for an unreadable file")
	}
}
