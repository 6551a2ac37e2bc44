package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/semdex/semdex/internal/pipeline"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
)

// ReindexJob rescans the configured root of one modality. The content-hash
// cache makes repeat runs cheap: unchanged media never reaches the provider
// again. Runs go through the shared Runner so a scheduled rescan never
// writes to a store concurrently with an API-triggered run; when one is
// already active the tick is skipped.
type ReindexJob struct {
	runner     *pipeline.Runner
	pipeline   pipeline.Pipeline
	root       string
	extensions []string
}

func NewReindexJob(runner *pipeline.Runner, p pipeline.Pipeline, root string, extensions []string) *ReindexJob {
	return &ReindexJob{runner: runner, pipeline: p, root: root, extensions: extensions}
}

func (j *ReindexJob) Name() string {
	return fmt.Sprintf("reindex_%s", j.pipeline.Name())
}

func (j *ReindexJob) Run(ctx context.Context) error {
	run, err := j.runner.Start(ctx, j.pipeline, j.root, j.extensions)
	if errors.Is(err, appErr.ErrConflict) {
		logutil.GetLogger(ctx).Info("reindex skipped: indexing already running",
			zap.String("modality", j.pipeline.Name()))
		return nil
	}
	if err != nil {
		return err
	}
	if err := run.Wait(ctx); err != nil {
		return err
	}
	status := run.Status()
	if status.Report != nil {
		logutil.GetLogger(ctx).Info("scheduled reindex done",
			zap.String("modality", status.Report.Modality),
			zap.Int("processed", status.Report.Processed),
			zap.Int("skipped", status.Report.SkipCount()))
	}
	return nil
}
