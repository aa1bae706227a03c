package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/orchestrator"
	"github.com/makeasinger/studio/internal/store"
)

// Executor runs one orchestrator task
type Executor interface {
	Execute(ctx context.Context, t orchestrator.Task) error
}

// JobWorker processes job tasks
type JobWorker struct {
	exec   Executor
	logger *zap.Logger
}

// NewJobWorker creates a new job worker
func NewJobWorker(exec Executor, logger *zap.Logger) *JobWorker {
	return &JobWorker{exec: exec, logger: logger.Named("worker")}
}

// ProcessTask handles job task processing
func (w *JobWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	task, err := decodeJobTask(t.Payload())
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	w.logger.Info("starting job", zap.String("job_id", task.JobID), zap.String("type", string(task.Type)))
	if err := w.exec.Execute(ctx, task); err != nil {
		// A redelivered task for a finished job has nothing left to do.
		if errors.Is(err, store.ErrTerminal) {
			w.logger.Warn("job already finished", zap.String("job_id", task.JobID))
			return nil
		}
		return fmt.Errorf("job %s: %w", task.JobID, err)
	}
	return nil
}

// Register adds the worker's handlers to mux
func (w *JobWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeJob, w.ProcessTask)
}
