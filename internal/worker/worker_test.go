package worker

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/orchestrator"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/store"
)

type fakeQueue struct {
	tasks   []*asynq.Task
	pending []*asynq.TaskInfo
	active  []*asynq.TaskInfo
	err     error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Payload: task.Payload()}, nil
}

func (q *fakeQueue) ListPendingTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	return q.pending, nil
}

func (q *fakeQueue) ListActiveTasks(string, ...asynq.ListOption) ([]*asynq.TaskInfo, error) {
	if q.active == nil {
		return nil, asynq.ErrQueueNotFound
	}
	return q.active, nil
}

func TestQueueDispatcher_Dispatch(t *testing.T) {
	q := &fakeQueue{}
	d := &QueueDispatcher{client: q, inspector: q}

	task := orchestrator.Task{
		JobID:  "job-1",
		Type:   model.JobTypeMix,
		Inputs: pipeline.Inputs{Stems: []string{"/assets/a.wav"}, TargetLUFS: ptr(-14.0)},
	}
	if err := d.Dispatch(context.Background(), task); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != TaskTypeJob {
		t.Fatalf("unexpected enqueued tasks %v", q.tasks)
	}

	got, err := decodeJobTask(q.tasks[0].Payload())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !reflect.DeepEqual(got, task) {
		t.Errorf("payload = %+v, want %+v", got, task)
	}
}

func TestQueueDispatcher_DispatchError(t *testing.T) {
	q := &fakeQueue{err: errors.New("redis down")}
	d := &QueueDispatcher{client: q, inspector: q}
	if err := d.Dispatch(context.Background(), orchestrator.Task{JobID: "x"}); err == nil {
		t.Error("expected enqueue error")
	}
}

func TestQueueDispatcher_InFlight(t *testing.T) {
	info := func(id string) *asynq.TaskInfo {
		task, _ := NewJobTask(orchestrator.Task{JobID: id})
		return &asynq.TaskInfo{Payload: task.Payload()}
	}
	q := &fakeQueue{
		pending: []*asynq.TaskInfo{info("b"), {Payload: []byte("garbage")}},
		active:  []*asynq.TaskInfo{info("a")},
	}
	d := &QueueDispatcher{client: q, inspector: q}

	ids, err := d.InFlight(context.Background())
	if err != nil {
		t.Fatalf("InFlight failed: %v", err)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("InFlight = %v, want %v", ids, want)
	}

	q.active = nil
	if ids, err := d.InFlight(context.Background()); err != nil || len(ids) != 1 {
		t.Errorf("missing queue should be skipped, got %v, %v", ids, err)
	}
}

type fakeExecutor struct {
	got orchestrator.Task
	err error
}

func (f *fakeExecutor) Execute(_ context.Context, t orchestrator.Task) error {
	f.got = t
	return f.err
}

func TestJobWorker_ProcessTask(t *testing.T) {
	exec := &fakeExecutor{}
	w := NewJobWorker(exec, zap.NewNop())

	task, _ := NewJobTask(orchestrator.Task{JobID: "job-9", Type: model.JobTypeVideo})
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask failed: %v", err)
	}
	if exec.got.JobID != "job-9" || exec.got.Type != model.JobTypeVideo {
		t.Errorf("unexpected task %+v", exec.got)
	}

	exec.err = store.ErrTerminal
	if err := w.ProcessTask(context.Background(), task); err != nil {
		t.Errorf("finished jobs should be acknowledged, got %v", err)
	}

	exec.err = errors.New("store unavailable")
	if err := w.ProcessTask(context.Background(), task); err == nil {
		t.Error("expected error to propagate")
	}

	bad := asynq.NewTask(TaskTypeJob, []byte("{"))
	if err := w.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("expected SkipRetry for a bad payload, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
