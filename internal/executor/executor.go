// Package executor runs named external generation calls with a bounded,
// fixed-backoff retry policy.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrUnknownCall is returned for a call name missing from the catalog. It is
// a configuration error and is never retried.
var ErrUnknownCall = errors.New("unknown external call")

// TerminalFailure is returned once every attempt of a call has failed.
type TerminalFailure struct {
	Call     string
	Attempts int
	Err      error
}

func (e *TerminalFailure) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Call, e.Attempts, e.Err)
}

func (e *TerminalFailure) Unwrap() error { return e.Err }

// Invoker is what pipeline stages depend on.
type Invoker interface {
	Invoke(ctx context.Context, call string, vars map[string]any) (map[string]any, error)
}

// Transport performs one attempt of a rendered call.
type Transport interface {
	Generate(ctx context.Context, call, prompt string) (map[string]any, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor implements Invoker.
type Executor struct {
	catalog   Catalog
	transport Transport
	mode      string
	sleep     SleepFunc
	pacing    bool
	logger    *zap.Logger
	attempts  metric.Int64Counter
}

var _ Invoker = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithSleep replaces the backoff sleep.
func WithSleep(fn SleepFunc) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithPacing controls whether mock calls wait the call's backoff before
// answering. It has no effect on live executors.
func WithPacing(on bool) Option {
	return func(e *Executor) { e.pacing = on }
}

// NewMock returns an executor that answers every call with the stub reply
// from its catalog entry.
func NewMock(catalog Catalog, opts ...Option) *Executor {
	e := newExecutor(catalog, "mock", opts)
	e.transport = &stubTransport{catalog: catalog, exec: e}
	return e
}

// NewLive returns an executor that sends rendered prompts through t.
func NewLive(catalog Catalog, t Transport, opts ...Option) *Executor {
	e := newExecutor(catalog, "live", opts)
	e.transport = t
	return e
}

func newExecutor(catalog Catalog, mode string, opts []Option) *Executor {
	e := &Executor{
		catalog: catalog,
		mode:    mode,
		sleep:   Sleep,
		pacing:  true,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	counter, err := otel.Meter("github.com/makeasinger/studio/internal/executor").Int64Counter(
		"studio_external_call_attempts",
		metric.WithDescription("External generation call attempts by outcome"),
	)
	if err == nil {
		e.attempts = counter
	}
	return e
}

// Mode reports "mock" or "live".
func (e *Executor) Mode() string { return e.mode }

// Invoke renders the call's prompt with vars and runs it under the call's
// retry policy. After every failed attempt it sleeps the policy's backoff,
// including after the last one, and returns a *TerminalFailure once the
// attempts are used up.
func (e *Executor) Invoke(ctx context.Context, call string, vars map[string]any) (map[string]any, error) {
	spec, ok := e.catalog[call]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCall, call)
	}
	policy := spec.Policy()
	prompt := Render(spec.Prompt, vars)

	var (
		attempts int
		lastErr  error
	)
	for attempts < policy.MaxAttempts {
		if err := ctx.Err(); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}

		out, err := e.transport.Generate(ctx, call, prompt)
		if err == nil {
			e.record(ctx, call, "success")
			return out, nil
		}

		lastErr = err
		attempts++
		e.record(ctx, call, "failure")
		e.logger.Warn("external call attempt failed",
			zap.String("call", call),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.Error(err),
		)

		if IsPermanent(err) {
			break
		}
		if sErr := e.sleep(ctx, policy.Backoff); sErr != nil {
			lastErr = errors.Join(lastErr, sErr)
			break
		}
	}

	return nil, &TerminalFailure{Call: call, Attempts: attempts, Err: lastErr}
}

func (e *Executor) record(ctx context.Context, call, outcome string) {
	if e.attempts == nil {
		return
	}
	e.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("call", call),
		attribute.String("outcome", outcome),
		attribute.String("mode", e.mode),
	))
}

// stubTransport answers with a copy of the catalog's stub reply.
type stubTransport struct {
	catalog Catalog
	exec    *Executor
}

func (t *stubTransport) Generate(ctx context.Context, call, _ string) (map[string]any, error) {
	spec := t.catalog[call]
	if t.exec.pacing {
		if err := t.exec.sleep(ctx, spec.Policy().Backoff); err != nil {
			return nil, err
		}
	}
	out := make(map[string]any, len(spec.Returns))
	for k, v := range spec.Returns {
		out[k] = v
	}
	return out, nil
}
