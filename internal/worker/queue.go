// Package worker runs orchestrator tasks through asynq so jobs survive a
// restart of the API process and can be spread over several workers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/makeasinger/studio/internal/orchestrator"
)

const (
	// TaskTypeJob is the asynq task type carrying an orchestrator.Task
	TaskTypeJob = "job:run"
	// QueueJobs is the queue job tasks are enqueued on
	QueueJobs = "jobs"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type inspector interface {
	ListPendingTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	ListActiveTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
}

// QueueDispatcher implements orchestrator.Dispatcher on an asynq queue
type QueueDispatcher struct {
	client    enqueuer
	inspector inspector
}

var _ orchestrator.Dispatcher = (*QueueDispatcher)(nil)

// NewQueueDispatcher creates a dispatcher enqueuing through client and
// listing in-flight tasks through inspector
func NewQueueDispatcher(client *asynq.Client, inspector *asynq.Inspector) *QueueDispatcher {
	return &QueueDispatcher{client: client, inspector: inspector}
}

// Dispatch enqueues t. Jobs are never retried by asynq: a failed run is
// already recorded on the job itself.
func (d *QueueDispatcher) Dispatch(ctx context.Context, t orchestrator.Task) error {
	task, err := NewJobTask(t)
	if err != nil {
		return err
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueJobs),
		asynq.TaskID(t.JobID),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

// InFlight lists the job ids of pending and active tasks
func (d *QueueDispatcher) InFlight(_ context.Context) ([]string, error) {
	var ids []string
	for _, list := range []func(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error){
		d.inspector.ListPendingTasks,
		d.inspector.ListActiveTasks,
	} {
		infos, err := list(QueueJobs, asynq.PageSize(1000))
		if errors.Is(err, asynq.ErrQueueNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to inspect queue: %w", err)
		}
		for _, info := range infos {
			t, err := decodeJobTask(info.Payload)
			if err != nil {
				continue
			}
			ids = append(ids, t.JobID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// NewJobTask wraps t as an asynq task
func NewJobTask(t orchestrator.Task) (*asynq.Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeJob, data), nil
}

func decodeJobTask(payload []byte) (orchestrator.Task, error) {
	var t orchestrator.Task
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if t.JobID == "" {
		return t, errors.New("task payload has no job id")
	}
	return t, nil
}
