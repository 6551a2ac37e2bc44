package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/semdex/semdex/internal/model"
	appErr "github.com/semdex/semdex/internal/pkg/errors"
)

// RunStatus is a point-in-time snapshot of a background indexing run.
type RunStatus struct {
	ID        string             `json:"id"`
	Modality  string             `json:"modality"`
	Directory string             `json:"directory"`
	Done      int                `json:"done"`
	Total     int                `json:"total"`
	Current   string             `json:"current,omitempty"`
	Finished  bool               `json:"finished"`
	Cancelled bool               `json:"cancelled"`
	Error     string             `json:"error,omitempty"`
	Report    *model.IndexReport `json:"report,omitempty"`
}

// Run is a cancellable handle on one background indexing run.
type Run struct {
	id        string
	modality  string
	directory string
	cancel    context.CancelFunc
	doneCh    chan struct{}

	mu        sync.Mutex
	done      int
	total     int
	current   string
	finished  bool
	cancelled bool
	err       error
	report    *model.IndexReport
}

func (r *Run) ID() string {
	return r.id
}

func (r *Run) Cancel() {
	r.mu.Lock()
	r.cancelled = true
	r.mu.Unlock()
	r.cancel()
}

func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := RunStatus{
		ID:        r.id,
		Modality:  r.modality,
		Directory: r.directory,
		Done:      r.done,
		Total:     r.total,
		Current:   r.current,
		Finished:  r.finished,
		Cancelled: r.cancelled,
		Report:    r.report,
	}
	if r.err != nil {
		status.Error = r.err.Error()
	}
	return status
}

func (r *Run) setProgress(done, total int, path string) {
	r.mu.Lock()
	r.done, r.total, r.current = done, total, path
	r.mu.Unlock()
}

func (r *Run) finish(report *model.IndexReport, err error) {
	r.mu.Lock()
	r.finished = true
	r.report = report
	r.err = err
	r.current = ""
	r.mu.Unlock()
	close(r.doneCh)
}

// Wait blocks until the run finishes or ctx expires, then returns the run's
// error.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.doneCh:
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Runner owns background indexing runs. Stores allow only one writer at a
// time, so at most one active run per modality is admitted.
type Runner struct {
	mu     sync.Mutex
	runs   map[string]*Run
	active map[string]*Run // modality -> running
}

func NewRunner() *Runner {
	return &Runner{
		runs:   make(map[string]*Run),
		active: make(map[string]*Run),
	}
}

// Start launches an indexing run in the background and returns its handle.
func (rn *Runner) Start(ctx context.Context, p Pipeline, dir string, extensions []string) (*Run, error) {
	rn.mu.Lock()
	if _, busy := rn.active[p.Name()]; busy {
		rn.mu.Unlock()
		return nil, fmt.Errorf("%w: %s indexing already running", appErr.ErrConflict, p.Name())
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		id:        uuid.NewString(),
		modality:  p.Name(),
		directory: dir,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}
	rn.runs[run.id] = run
	rn.active[p.Name()] = run
	rn.mu.Unlock()

	go func() {
		defer cancel()
		report, err := IndexDirectory(runCtx, p, dir, extensions, run.setProgress)
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		rn.mu.Lock()
		delete(rn.active, p.Name())
		rn.mu.Unlock()
		run.finish(report, err)
	}()
	return run, nil
}

func (rn *Runner) Get(id string) (*Run, bool) {
	rn.mu.Lock()
	defer rn.mu.Unlock()
	run, ok := rn.runs[id]
	return run, ok
}
