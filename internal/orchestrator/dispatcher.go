package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by Dispatch after Shutdown.
var ErrDispatcherClosed = errors.New("dispatcher is shut down")

// Dispatcher runs tasks off the submitter's goroutine.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Task) error
	InFlight(ctx context.Context) ([]string, error)
}

// HandlerFunc executes one task.
type HandlerFunc func(ctx context.Context, t Task) error

// LocalDispatcher runs each task on its own goroutine, at most n at a time.
// Tasks waiting for a slot count as in flight.
type LocalDispatcher struct {
	handle HandlerFunc
	drop   func(t Task, cause error)
	sem    chan struct{}
	logger *zap.Logger

	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	wg       sync.WaitGroup
	inflight map[string]struct{}
	closed   bool
}

var _ Dispatcher = (*LocalDispatcher)(nil)

// NewLocalDispatcher creates a dispatcher running at most n tasks at once.
func NewLocalDispatcher(handle HandlerFunc, n int, logger *zap.Logger) *LocalDispatcher {
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		handle:   handle,
		sem:      make(chan struct{}, n),
		logger:   logger.Named("dispatcher"),
		base:     base,
		cancel:   cancel,
		inflight: make(map[string]struct{}),
	}
}

// OnDrop sets what happens to a task that never got a slot before
// Shutdown cancelled it.
func (d *LocalDispatcher) OnDrop(fn func(t Task, cause error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drop = fn
}

// Dispatch starts t in the background. The task outlives ctx; it is only
// cancelled by Shutdown.
func (d *LocalDispatcher) Dispatch(_ context.Context, t Task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	if _, dup := d.inflight[t.JobID]; dup {
		return fmt.Errorf("job %s is already dispatched", t.JobID)
	}
	d.inflight[t.JobID] = struct{}{}
	d.wg.Add(1)
	go d.run(t)
	return nil
}

func (d *LocalDispatcher) run(t Task) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.inflight, t.JobID)
		d.mu.Unlock()
	}()

	select {
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	case <-d.base.Done():
		d.logger.Warn("task dropped at shutdown", zap.String("job_id", t.JobID))
		d.mu.Lock()
		drop := d.drop
		d.mu.Unlock()
		if drop != nil {
			drop(t, d.base.Err())
		}
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task panicked",
				zap.String("job_id", t.JobID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()
	if err := d.handle(d.base, t); err != nil {
		d.logger.Error("task failed", zap.String("job_id", t.JobID), zap.Error(err))
	}
}

// InFlight returns the ids of dispatched tasks that have not finished.
func (d *LocalDispatcher) InFlight(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.inflight))
	for id := range d.inflight {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Shutdown stops accepting tasks and waits for running ones. When ctx ends
// first, running tasks are cancelled and awaited.
func (d *LocalDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}
