package job

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/semdex/semdex/internal/model"
	"github.com/semdex/semdex/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

type blockingPipe struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (p *blockingPipe) Name() string                { return "text" }
func (p *blockingPipe) DefaultExtensions() []string { return []string{".txt"} }

func (p *blockingPipe) ProcessFile(ctx context.Context, path string) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *blockingPipe) Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error) {
	return nil, nil
}

func (p *blockingPipe) processed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func writeTxt(t *testing.T, dir, name string) {
	t.Helper()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("hello"), 0o644))
}

func TestReindexJobRunsThroughRunner(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "a.txt")
	writeTxt(t, dir, "b.txt")

	runner := pipeline.NewRunner()
	pipe := &blockingPipe{}
	job := NewReindexJob(runner, pipe, dir, []string{".txt"})
	assert.Equal(t, "reindex_text", job.Name())

	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, pipe.processed())
}

func TestReindexJobSkipsWhileRunActive(t *testing.T) {
	dir := t.TempDir()
	writeTxt(t, dir, "a.txt")

	runner := pipeline.NewRunner()
	holder := &blockingPipe{release: make(chan struct{})}
	active, err := runner.Start(context.Background(), holder, dir, []string{".txt"})
	assert.NoError(t, err)

	// Wait for the background run to reach ProcessFile so it holds the
	// modality slot.
	deadline := time.Now().Add(2 * time.Second)
	for holder.processed() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, holder.processed())

	pipe := &blockingPipe{}
	job := NewReindexJob(runner, pipe, dir, []string{".txt"})
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 0, pipe.processed(), "tick should be skipped while indexing is active")

	close(holder.release)
	assert.NoError(t, active.Wait(context.Background()))

	// Slot released, the next tick indexes normally.
	assert.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, pipe.processed())
}
