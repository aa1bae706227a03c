// Package orchestrator owns the job lifecycle: it creates jobs, hands them
// to a dispatcher and drives their plans to a terminal status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/store"
)

// ErrUnknownJobType is returned when no plan exists for a job type.
var ErrUnknownJobType = errors.New("unknown job type")

// Submission is a request to start a job.
type Submission struct {
	Type      model.JobType
	ProjectID string
	Message   string
	Inputs    pipeline.Inputs
}

// Task is what a dispatcher carries from Submit to Execute.
type Task struct {
	JobID  string          `json:"jobId"`
	Type   model.JobType   `json:"type"`
	Inputs pipeline.Inputs `json:"payload"`
}

// Orchestrator runs job plans against a JobStore.
type Orchestrator struct {
	jobs       store.JobStore
	plans      *pipeline.Registry
	dispatcher Dispatcher
	notifier   Notifier
	logger     *zap.Logger
	workers    int
	now        func() time.Time

	submitted metric.Int64Counter
	finished  metric.Int64Counter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDispatcher replaces the default in-process dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithNotifier sets where progress, completion and failure are pushed.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithConcurrency bounds the default dispatcher.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// New creates an Orchestrator. Without WithDispatcher it runs jobs on a
// LocalDispatcher bound to Execute.
func New(jobs store.JobStore, plans *pipeline.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		jobs:     jobs,
		plans:    plans,
		notifier: nopNotifier{},
		logger:   zap.NewNop(),
		workers:  4,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.dispatcher == nil {
		local := NewLocalDispatcher(o.Execute, o.workers, o.logger)
		local.OnDrop(func(t Task, cause error) {
			o.abandon(t.JobID, "cancelled before start", cause)
		})
		o.dispatcher = local
	}

	meter := otel.Meter("github.com/makeasinger/studio/internal/orchestrator")
	if c, err := meter.Int64Counter("studio_jobs_submitted", metric.WithDescription("Jobs accepted by type")); err == nil {
		o.submitted = c
	}
	if c, err := meter.Int64Counter("studio_jobs_finished", metric.WithDescription("Jobs finished by type and status")); err == nil {
		o.finished = c
	}
	return o
}

// Dispatcher returns the dispatcher jobs are handed to.
func (o *Orchestrator) Dispatcher() Dispatcher { return o.dispatcher }

// Submit creates a queued job and dispatches it. It returns as soon as the
// job is durable; no stage runs on the caller's goroutine.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (string, error) {
	if _, ok := o.plans.Plan(sub.Type); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownJobType, sub.Type)
	}

	now := o.now().UTC()
	msg := sub.Message
	if msg == "" {
		msg = "Queued"
	}
	job := &model.Job{
		ID:        uuid.New().String(),
		Type:      sub.Type,
		Status:    model.JobStatusQueued,
		Progress:  0,
		Message:   msg,
		Logs:      []string{model.LogLine(now, "queued")},
		Result:    map[string]any{},
		ProjectID: sub.ProjectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	task := Task{JobID: job.ID, Type: sub.Type, Inputs: sub.Inputs}
	if err := o.dispatcher.Dispatch(ctx, task); err != nil {
		// The job exists but nothing will run it; record that.
		o.abandon(job.ID, "dispatch failed", err)
		return "", fmt.Errorf("failed to dispatch job: %w", err)
	}

	o.count(ctx, o.submitted, attribute.String("type", string(sub.Type)))
	o.logger.Info("job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(sub.Type)),
		zap.String("project_id", sub.ProjectID),
	)
	return job.ID, nil
}

// Execute is the dispatcher entry point for one task. A job whose run was
// cut short by ctx is still moved to error.
func (o *Orchestrator) Execute(ctx context.Context, t Task) (err error) {
	plan, ok := o.plans.Plan(t.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJobType, t.Type)
	}
	defer func() {
		if err != nil && ctx.Err() != nil && !errors.Is(err, store.ErrTerminal) {
			o.abandon(t.JobID, "interrupted", ctx.Err())
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", t.JobID, r)
			o.logger.Error("job panicked outside a stage",
				zap.String("job_id", t.JobID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	return o.Run(ctx, t.JobID, plan, t.Inputs)
}

// InFlight lists job ids the dispatcher has accepted but not finished.
func (o *Orchestrator) InFlight(ctx context.Context) ([]string, error) {
	return o.dispatcher.InFlight(ctx)
}

// Run drives one job through plan. Stage failures end the job in error
// and return nil; only store failures are returned.
func (o *Orchestrator) Run(ctx context.Context, jobID string, plan pipeline.Plan, in pipeline.Inputs) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s is %s: %w", jobID, job.Status, store.ErrTerminal)
	}

	log := o.logger.With(zap.String("job_id", jobID), zap.String("type", string(plan.Type)))
	started := o.now()
	running := model.JobStatusRunning
	progress := min(100, max(job.Progress, plan.StartProgress))
	msg := "Starting " + string(plan.Type)
	if err := o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{
		Status:    &running,
		Progress:  &progress,
		Message:   &msg,
		StartedAt: &started,
	}); err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	o.appendLog(ctx, jobID, msg)
	o.notifier.Progress(jobID, progress, running, msg)
	log.Info("job started")

	result := map[string]any{}
	from := progress
	rep := &reporter{o: o, ctx: ctx, jobID: jobID, last: progress}

	for i, step := range plan.Steps {
		rep.from, rep.until = from, max(from, step.Until)

		out, err := o.produce(ctx, step.Stage, &in, cloneResult(result), rep)
		if out != nil {
			for k, v := range out.Result {
				result[k] = v
			}
		}
		if err != nil {
			return o.fail(ctx, log, jobID, plan.Type, step.Stage.Name(), err, result)
		}

		stageMsg := step.Stage.Name() + " done"
		if out != nil && out.Message != "" {
			stageMsg = out.Message
		}

		if i == len(plan.Steps)-1 {
			return o.complete(ctx, log, jobID, plan.Type, stageMsg, result)
		}

		checkpoint := rep.clamp(rep.until)
		if err := o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{
			Progress: &checkpoint,
			Message:  &stageMsg,
			Result:   cloneResult(result),
		}); err != nil {
			return fmt.Errorf("failed to checkpoint job %s: %w", jobID, err)
		}
		o.appendLog(ctx, jobID, stageMsg)
		o.notifier.Progress(jobID, checkpoint, running, stageMsg)
		from = rep.until
	}

	// A plan without steps has nothing to do.
	return o.complete(ctx, log, jobID, plan.Type, "Done", result)
}

// produce runs one stage and turns a panic into an error.
func (o *Orchestrator) produce(ctx context.Context, s pipeline.Stage, in *pipeline.Inputs, prior map[string]any, r pipeline.Reporter) (out *pipeline.Output, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("stage panicked",
				zap.String("stage", s.Name()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("%s stage panicked: %v", s.Name(), rec)
		}
	}()
	return s.Produce(ctx, in, prior, r)
}

func (o *Orchestrator) complete(ctx context.Context, log *zap.Logger, jobID string, t model.JobType, msg string, result map[string]any) error {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	o.appendLog(ctx, jobID, msg)

	done := model.JobStatusDone
	progress := 100
	completed := o.now()
	if err := o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{
		Status:      &done,
		Progress:    &progress,
		Message:     &msg,
		Result:      cloneResult(result),
		CompletedAt: &completed,
	}); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", jobID, err)
	}

	o.notifier.Progress(jobID, progress, done, msg)
	o.notifier.Complete(jobID, cloneResult(result))
	o.count(ctx, o.finished, attribute.String("type", string(t)), attribute.String("status", string(done)))
	log.Info("job completed")
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, jobID string, t model.JobType, stage string, cause error, result map[string]any) error {
	ctx, cancel := settleContext(ctx)
	defer cancel()
	msg := cause.Error()
	log.Error("job failed", zap.String("stage", stage), zap.Error(cause))
	o.appendLog(ctx, jobID, "Error: "+msg)

	failed := model.JobStatusError
	completed := o.now()
	if err := o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{
		Status:      &failed,
		Message:     &msg,
		Result:      cloneResult(result),
		CompletedAt: &completed,
	}); err != nil {
		return fmt.Errorf("failed to record failure of job %s: %w", jobID, errors.Join(err, cause))
	}

	o.notifier.Failed(jobID, msg)
	o.count(ctx, o.finished, attribute.String("type", string(t)), attribute.String("status", string(failed)))
	return nil
}

// settleContext detaches the terminal write from ctx so a cancelled run
// still records how it ended.
func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

// abandon moves a job that will not run (further) to error. It runs on a
// fresh context since the caller's may already be gone.
func (o *Orchestrator) abandon(jobID, reason string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		o.logger.Error("failed to load abandoned job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if job.Status.IsTerminal() {
		return
	}

	msg := reason + ": " + cause.Error()
	now := o.now()
	o.appendLog(ctx, jobID, "Error: "+msg)

	running := model.JobStatusRunning
	failed := model.JobStatusError
	if job.Status == model.JobStatusQueued {
		err = o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{Status: &running, StartedAt: &now})
	}
	if err == nil {
		err = o.jobs.UpdateJob(ctx, jobID, store.JobUpdate{Status: &failed, Message: &msg, CompletedAt: &now})
	}
	if err != nil {
		o.logger.Error("failed to mark abandoned job", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	o.notifier.Failed(jobID, msg)
	o.count(ctx, o.finished, attribute.String("type", string(job.Type)), attribute.String("status", string(failed)))
}

func (o *Orchestrator) appendLog(ctx context.Context, jobID, text string) {
	if err := o.jobs.AppendJobLog(ctx, jobID, model.LogLine(o.now(), text)); err != nil {
		o.logger.Warn("failed to append job log", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (o *Orchestrator) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func cloneResult(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// reporter maps a stage's local progress onto the job's [from, until]
// window and writes it through to the store.
type reporter struct {
	o     *Orchestrator
	ctx   context.Context
	jobID string
	from  int
	until int
	last  int
}

var _ pipeline.Reporter = (*reporter)(nil)

// clamp keeps progress monotonic and at most 100.
func (r *reporter) clamp(p int) int {
	p = min(100, max(r.last, p))
	r.last = p
	return p
}

func (r *reporter) Report(p int, message string) {
	p = min(100, max(0, p))
	progress := r.clamp(r.from + p*(r.until-r.from)/100)

	if err := r.o.jobs.UpdateJob(r.ctx, r.jobID, store.JobUpdate{Progress: &progress, Message: &message}); err != nil {
		r.o.logger.Warn("failed to record progress", zap.String("job_id", r.jobID), zap.Error(err))
	}
	r.o.appendLog(r.ctx, r.jobID, message)
	r.o.notifier.Progress(r.jobID, progress, model.JobStatusRunning, message)
}

func (r *reporter) Log(text string) {
	r.o.appendLog(r.ctx, r.jobID, text)
}
