package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/client"
	"github.com/makeasinger/studio/internal/executor"
	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/store"
)

type event struct {
	kind     string
	progress int
	status   model.JobStatus
	message  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Progress(_ string, p int, s model.JobStatus, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{"progress", p, s, msg})
}

func (n *recordingNotifier) Complete(string, map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: "complete"})
}

func (n *recordingNotifier) Failed(_ string, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{kind: "failed", message: msg})
}

func (n *recordingNotifier) snapshot() []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]event(nil), n.events...)
}

func newRegistry(t *testing.T) *pipeline.Registry {
	t.Helper()
	catalog, err := executor.LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	storage, err := client.NewLocalStorage(t.TempDir(), "/assets")
	if err != nil {
		t.Fatal(err)
	}
	return pipeline.NewRegistry(&pipeline.Env{
		Invoker:    executor.NewMock(catalog, executor.WithPacing(false)),
		Sink:       asset.NewSink(storage, store.NewMemory()),
		SampleRate: 8000,
	})
}

func waitTerminal(t *testing.T, s store.JobStore, id string) *model.Job {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status.IsTerminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func drain(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Dispatcher().(*LocalDispatcher).Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

// checkStream asserts the notified statuses follow the state machine and
// progress never goes down or past 100.
func checkStream(t *testing.T, events []event) {
	t.Helper()
	last := 0
	var status model.JobStatus = model.JobStatusQueued
	for _, e := range events {
		if e.kind != "progress" {
			continue
		}
		if !status.CanTransition(e.status) {
			t.Errorf("illegal transition %s -> %s", status, e.status)
		}
		status = e.status
		if e.progress < last || e.progress > 100 {
			t.Errorf("progress %d after %d", e.progress, last)
		}
		last = e.progress
	}
}

func resultStrings(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, x := range s {
			out = append(out, x.(string))
		}
		return out
	}
	return nil
}

func TestSubmit_MelodyRunsToDone(t *testing.T) {
	jobs := store.NewMemory()
	notes := &recordingNotifier{}
	o := New(jobs, newRegistry(t), WithNotifier(notes))

	id, err := o.Submit(context.Background(), Submission{
		Type:      model.JobTypeMelody,
		ProjectID: "p1",
		Message:   "Generating melody from lyrics...",
		Inputs:    pipeline.Inputs{ProjectID: "p1", Tempo: 80, Key: "C minor", Style: "Romantic", Lyrics: "line one\nline two"},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("job id %q is not a uuid", id)
	}

	job := waitTerminal(t, jobs, id)
	drain(t, o)

	if job.Status != model.JobStatusDone || job.Progress != 100 {
		t.Fatalf("expected done/100, got %s/%d (%s)", job.Status, job.Progress, job.Message)
	}
	if job.Message != "Melody ready" {
		t.Errorf("unexpected message %q", job.Message)
	}
	if job.Result["midiUrl"] == nil || job.Result["guideUrl"] == nil {
		t.Errorf("unexpected result %v", job.Result)
	}
	if !strings.HasSuffix(job.Logs[0], " - queued") {
		t.Errorf("first log line should be the queued entry, got %q", job.Logs[0])
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Error("expected started and completed timestamps")
	}

	events := notes.snapshot()
	checkStream(t, events)
	if events[len(events)-1].kind != "complete" {
		t.Errorf("expected completion to be notified last, got %+v", events[len(events)-1])
	}
}

func TestSubmit_UnknownJobType(t *testing.T) {
	o := New(store.NewMemory(), newRegistry(t))
	defer drain(t, o)

	if _, err := o.Submit(context.Background(), Submission{Type: "karaoke"}); !errors.Is(err, ErrUnknownJobType) {
		t.Fatalf("expected ErrUnknownJobType, got %v", err)
	}
	if ids, _ := o.InFlight(context.Background()); len(ids) != 0 {
		t.Errorf("nothing should be in flight, got %v", ids)
	}
}

func TestSubmit_CreateRunsEveryStage(t *testing.T) {
	jobs := store.NewMemory()
	notes := &recordingNotifier{}
	o := New(jobs, newRegistry(t), WithNotifier(notes))

	id, err := o.Submit(context.Background(), Submission{
		Type:      model.JobTypeCreate,
		ProjectID: "p1",
		Inputs: pipeline.Inputs{
			ProjectID:      "p1",
			Tempo:          80,
			Key:            "C minor",
			Style:          "Romantic",
			Lyrics:         "first line\nsecond line",
			Instruments:    []string{"Piano", "Strings", "Pads"},
			VoiceProfileID: "default",
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	job := waitTerminal(t, jobs, id)
	drain(t, o)

	if job.Status != model.JobStatusDone || job.Progress != 100 {
		t.Fatalf("expected done/100, got %s/%d (%s)", job.Status, job.Progress, job.Message)
	}
	if n := len(resultStrings(job.Result["stems"])); n != 3 {
		t.Errorf("expected 3 stems, got %d", n)
	}
	for _, key := range []string{"midiUrl", "vocalUrl", "masterUrl", "videoUrl"} {
		if s, _ := job.Result[key].(string); s == "" {
			t.Errorf("missing %s in %v", key, job.Result)
		}
	}
	if job.Message != "Video ready" {
		t.Errorf("unexpected final message %q", job.Message)
	}

	events := notes.snapshot()
	checkStream(t, events)
	if events[0].progress != 5 || events[0].status != model.JobStatusRunning {
		t.Errorf("expected composite to start running at 5, got %+v", events[0])
	}
	var sawCheckpoints []int
	for _, e := range events {
		switch e.message {
		case "Instrumental stems ready", "Melody ready", "Vocals ready", "Master ready":
			sawCheckpoints = append(sawCheckpoints, e.progress)
		}
	}
	want := []int{25, 45, 70, 85}
	if len(sawCheckpoints) != len(want) {
		t.Fatalf("checkpoints = %v, want %v", sawCheckpoints, want)
	}
	for i := range want {
		if sawCheckpoints[i] != want[i] {
			t.Errorf("checkpoints = %v, want %v", sawCheckpoints, want)
			break
		}
	}
}

type fakeStage struct {
	name   string
	run    func(r pipeline.Reporter) (*pipeline.Output, error)
	prior  map[string]any
	called bool
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Produce(_ context.Context, _ *pipeline.Inputs, prior map[string]any, r pipeline.Reporter) (*pipeline.Output, error) {
	s.called = true
	s.prior = prior
	return s.run(r)
}

func queuedJob(t *testing.T, jobs store.JobStore) string {
	t.Helper()
	now := time.Now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      model.JobTypeCreate,
		Status:    model.JobStatusQueued,
		Logs:      []string{},
		Result:    map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	return job.ID
}

func TestRun_ClampsProgress(t *testing.T) {
	jobs := store.NewMemory()
	notes := &recordingNotifier{}
	o := New(jobs, newRegistry(t), WithNotifier(notes))
	defer drain(t, o)

	stage := &fakeStage{name: "over", run: func(r pipeline.Reporter) (*pipeline.Output, error) {
		r.Report(150, "too far")
		r.Report(30, "backwards")
		return &pipeline.Output{Message: "fine"}, nil
	}}
	id := queuedJob(t, jobs)
	plan := pipeline.Plan{Type: model.JobTypeMix, Steps: []pipeline.Step{{Stage: stage, Until: 100}}}

	if err := o.Run(context.Background(), id, plan, pipeline.Inputs{}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	checkStream(t, notes.snapshot())
	for _, e := range notes.snapshot() {
		if e.message == "backwards" && e.progress != 100 {
			t.Errorf("progress went back to %d", e.progress)
		}
	}
	job, _ := jobs.GetJob(context.Background(), id)
	if job.Status != model.JobStatusDone || job.Progress != 100 {
		t.Errorf("expected done/100, got %s/%d", job.Status, job.Progress)
	}
}

func TestRun_StageFailureKeepsPartialResult(t *testing.T) {
	jobs := store.NewMemory()
	notes := &recordingNotifier{}
	o := New(jobs, newRegistry(t), WithNotifier(notes))
	defer drain(t, o)

	first := &fakeStage{name: "first", run: func(r pipeline.Reporter) (*pipeline.Output, error) {
		r.Report(50, "halfway")
		return &pipeline.Output{Result: map[string]any{"a": "1"}, Message: "first ready"}, nil
	}}
	second := &fakeStage{name: "second", run: func(pipeline.Reporter) (*pipeline.Output, error) {
		return &pipeline.Output{Result: map[string]any{"b": "2"}}, errors.New("renderer unavailable")
	}}
	third := &fakeStage{name: "third", run: func(pipeline.Reporter) (*pipeline.Output, error) {
		return &pipeline.Output{}, nil
	}}
	id := queuedJob(t, jobs)
	plan := pipeline.Plan{Type: model.JobTypeCreate, StartProgress: 5, Steps: []pipeline.Step{
		{Stage: first, Until: 40}, {Stage: second, Until: 80}, {Stage: third, Until: 100},
	}}

	if err := o.Run(context.Background(), id, plan, pipeline.Inputs{}); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	job, _ := jobs.GetJob(context.Background(), id)
	if job.Status != model.JobStatusError || job.Message != "renderer unavailable" {
		t.Fatalf("expected error with cause, got %s %q", job.Status, job.Message)
	}
	if job.Result["a"] != "1" || job.Result["b"] != "2" {
		t.Errorf("partial result lost: %v", job.Result)
	}
	if job.Progress != 40 {
		t.Errorf("expected progress to stay at the last checkpoint, got %d", job.Progress)
	}
	if second.prior["a"] != "1" {
		t.Errorf("second stage should see first stage output, got %v", second.prior)
	}
	if third.called {
		t.Error("stages after a failure must not run")
	}

	events := notes.snapshot()
	if last := events[len(events)-1]; last.kind != "failed" || last.message != "renderer unavailable" {
		t.Errorf("expected failure notification, got %+v", last)
	}
	if err := jobs.UpdateJob(context.Background(), id, store.JobUpdate{Progress: ptr(90)}); !errors.Is(err, store.ErrTerminal) {
		t.Errorf("failed job must be immutable, got %v", err)
	}
}

func TestRun_StagePanicBecomesError(t *testing.T) {
	jobs := store.NewMemory()
	o := New(jobs, newRegistry(t))
	defer drain(t, o)

	stage := &fakeStage{name: "boom", run: func(pipeline.Reporter) (*pipeline.Output, error) {
		panic("nil stem")
	}}
	id := queuedJob(t, jobs)
	plan := pipeline.Plan{Type: model.JobTypeVideo, Steps: []pipeline.Step{{Stage: stage, Until: 100}}}

	if err := o.Run(context.Background(), id, plan, pipeline.Inputs{}); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	job, _ := jobs.GetJob(context.Background(), id)
	if job.Status != model.JobStatusError || !strings.Contains(job.Message, "nil stem") {
		t.Errorf("expected panic to be recorded, got %s %q", job.Status, job.Message)
	}
}

func TestRun_TerminalJobUntouched(t *testing.T) {
	jobs := store.NewMemory()
	o := New(jobs, newRegistry(t))
	defer drain(t, o)

	id := queuedJob(t, jobs)
	_ = jobs.UpdateJob(context.Background(), id, store.JobUpdate{Status: ptr(model.JobStatusRunning)})
	_ = jobs.UpdateJob(context.Background(), id, store.JobUpdate{Status: ptr(model.JobStatusDone), Message: ptr("kept")})

	stage := &fakeStage{name: "never", run: func(pipeline.Reporter) (*pipeline.Output, error) {
		return &pipeline.Output{}, nil
	}}
	plan := pipeline.Plan{Steps: []pipeline.Step{{Stage: stage, Until: 100}}}

	if err := o.Run(context.Background(), id, plan, pipeline.Inputs{}); !errors.Is(err, store.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if stage.called {
		t.Error("stage ran for a terminal job")
	}
	job, _ := jobs.GetJob(context.Background(), id)
	if job.Message != "kept" {
		t.Errorf("terminal job changed: %q", job.Message)
	}
}

func TestRun_UnknownJob(t *testing.T) {
	o := New(store.NewMemory(), newRegistry(t))
	defer drain(t, o)

	err := o.Run(context.Background(), uuid.New().String(), pipeline.Plan{}, pipeline.Inputs{})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, Task) error       { return errors.New("queue down") }
func (failingDispatcher) InFlight(context.Context) ([]string, error) { return nil, nil }

func TestSubmit_DispatchFailureEndsJob(t *testing.T) {
	jobs := store.NewMemory()
	o := New(jobs, newRegistry(t), WithDispatcher(failingDispatcher{}))

	_, err := o.Submit(context.Background(), Submission{Type: model.JobTypeMix})
	if err == nil || !strings.Contains(err.Error(), "queue down") {
		t.Fatalf("expected dispatch error, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

func TestShutdown_DeadlineLeavesNoJobBehind(t *testing.T) {
	jobs, err := store.OpenSQLite(filepath.Join(t.TempDir(), "studio.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer jobs.Close()

	catalog, err := executor.LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	storage, err := client.NewLocalStorage(t.TempDir(), "/assets")
	if err != nil {
		t.Fatal(err)
	}
	registry := pipeline.NewRegistry(&pipeline.Env{
		Invoker:    executor.NewMock(catalog, executor.WithPacing(false)),
		Sink:       asset.NewSink(storage, jobs),
		Latency:    time.Hour,
		SampleRate: 8000,
	})
	notes := &recordingNotifier{}
	o := New(jobs, registry, WithNotifier(notes), WithConcurrency(1))

	in := pipeline.Inputs{ProjectID: "p1", Tempo: 80, Key: "C minor", Style: "Romantic", Lyrics: "la"}
	running, err := o.Submit(context.Background(), Submission{Type: model.JobTypeMelody, Inputs: in})
	if err != nil {
		t.Fatal(err)
	}
	waiting, err := o.Submit(context.Background(), Submission{Type: model.JobTypeMelody, Inputs: in})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := jobs.GetJob(context.Background(), running)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == model.JobStatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first job never started: %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := o.Dispatcher().(*LocalDispatcher).Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	for _, id := range []string{running, waiting} {
		job, err := jobs.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job.Status != model.JobStatusError || job.CompletedAt == nil {
			t.Errorf("job %s left %s at %d%%", id, job.Status, job.Progress)
		}
		if len(job.Logs) == 0 || !strings.Contains(job.Logs[len(job.Logs)-1], "Error: ") {
			t.Errorf("job %s missing error log: %v", id, job.Logs)
		}
	}

	failed := 0
	for _, e := range notes.snapshot() {
		if e.kind == "failed" {
			failed++
		}
	}
	if failed != 2 {
		t.Errorf("expected 2 failure notifications, got %d", failed)
	}
}
