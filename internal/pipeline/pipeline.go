// Package pipeline turns raw media files into embedding-store entries, one
// pipeline per modality, and drives indexing runs over directories.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
)

// Encoder, Captioner and Transcriber are the slices of the inference
// service each pipeline actually needs; *ai.Manager satisfies all of them.
type Encoder interface {
	EncodeText(ctx context.Context, texts []string) ([][]float32, error)
	EncodeQuery(ctx context.Context, query string) ([]float32, error)
}

type Captioner interface {
	CaptionImages(ctx context.Context, images [][]byte) ([]string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// Pipeline converts files of one modality into store entries and answers
// free-text queries over them.
type Pipeline interface {
	Name() string
	DefaultExtensions() []string
	// ProcessFile indexes a single file. Failures are per-item: the indexer
	// records them and moves on.
	ProcessFile(ctx context.Context, path string) error
	Search(ctx context.Context, query string, topK int) ([]model.SearchResult, error)
}

// ListFilesByExtension walks dir recursively and returns every file whose
// name matches one of the extensions, case-insensitively, sorted so runs are
// deterministic.
func ListFilesByExtension(dir string, extensions []string) ([]string, error) {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, strings.ToLower(ext))
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := strings.ToLower(d.Name())
		for _, ext := range exts {
			if strings.HasSuffix(name, ext) {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

type ProgressFunc func(done, total int, path string)

// IndexDirectory feeds every matching file through p.ProcessFile. A failed
// file is logged and recorded in the report; the run continues. Cancellation
// is honored between files, never mid-file, so the store only ever contains
// fully committed files.
func IndexDirectory(ctx context.Context, p Pipeline, dir string, extensions []string, onProgress ProgressFunc) (*model.IndexReport, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: scan directory is required", appErr.ErrInvalid)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: scan directory %s: %v", appErr.ErrInvalid, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", appErr.ErrInvalid, dir)
	}
	if len(extensions) == 0 {
		extensions = p.DefaultExtensions()
	}

	files, err := ListFilesByExtension(dir, extensions)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	logger := logutil.GetLogger(ctx).With(zap.String("modality", p.Name()), zap.String("dir", dir))
	logger.Info("indexing started", zap.Int("files", len(files)))

	start := time.Now()
	report := &model.IndexReport{
		Modality:  p.Name(),
		Directory: dir,
		Total:     len(files),
	}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(start)
			logger.Info("indexing cancelled",
				zap.Int("processed", report.Processed),
				zap.Int("skipped", report.SkipCount()))
			return report, err
		}
		if err := p.ProcessFile(ctx, path); err != nil {
			logger.Warn("file skipped", zap.String("path", path), zap.Error(err))
			report.Skipped = append(report.Skipped, model.SkippedFile{Path: path, Reason: err.Error()})
		} else {
			report.Processed++
		}
		if onProgress != nil {
			onProgress(i+1, len(files), path)
		}
	}
	report.Duration = time.Since(start)
	logger.Info("indexing finished",
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.SkipCount()),
		zap.Duration("duration", report.Duration))
	return report, nil
}
