package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type failingTransport struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *failingTransport) Generate(_ context.Context, _, _ string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil, f.err
}

type flakyTransport struct {
	failures int
	calls    int
	prompts  []string
}

func (f *flakyTransport) Generate(_ context.Context, _, prompt string) (map[string]any, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.calls <= f.failures {
		return nil, errors.New("upstream timeout")
	}
	return map[string]any{"ok": true}, nil
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func intp(v int) *int { return &v }

func testCatalog() Catalog {
	return Catalog{
		"always_fails": {
			Prompt: "compose {{style}}",
			Retry:  &RetrySpec{Max: intp(3), BackoffMS: intp(250)},
		},
		"stub": {
			Prompt:  "x",
			Retry:   &RetrySpec{Max: intp(2), BackoffMS: intp(100)},
			Returns: map[string]any{"contour": "arch"},
		},
		"no_retry": {Prompt: "x"},
	}
}

func TestInvoke_ExhaustsAttempts(t *testing.T) {
	transport := &failingTransport{err: errors.New("connection reset")}
	rec := &sleepRecorder{}
	e := NewLive(testCatalog(), transport, WithSleep(rec.sleep))

	_, err := e.Invoke(context.Background(), "always_fails", map[string]any{"style": "Romantic"})

	var tf *TerminalFailure
	if !errors.As(err, &tf) {
		t.Fatalf("expected TerminalFailure, got %v", err)
	}
	if tf.Attempts != 3 || tf.Call != "always_fails" {
		t.Errorf("unexpected failure %+v", tf)
	}
	if transport.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", transport.calls)
	}
	if len(rec.waits) != 3 {
		t.Fatalf("expected 3 backoff sleeps, got %d", len(rec.waits))
	}
	for _, w := range rec.waits {
		if w != 250*time.Millisecond {
			t.Errorf("expected fixed 250ms backoff, got %v", w)
		}
	}
	if tf.Err == nil || tf.Err.Error() != "connection reset" {
		t.Errorf("expected last error to be kept, got %v", tf.Err)
	}
}

func TestInvoke_RecoversAfterTransientFailure(t *testing.T) {
	transport := &flakyTransport{failures: 1}
	rec := &sleepRecorder{}
	e := NewLive(testCatalog(), transport, WithSleep(rec.sleep))

	out, err := e.Invoke(context.Background(), "always_fails", map[string]any{"style": "Sad"})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out["ok"] != true {
		t.Errorf("unexpected output %v", out)
	}
	if transport.calls != 2 || len(rec.waits) != 1 {
		t.Errorf("expected 2 attempts and 1 sleep, got %d and %d", transport.calls, len(rec.waits))
	}
	if transport.prompts[0] != "compose Sad" {
		t.Errorf("unexpected rendered prompt %q", transport.prompts[0])
	}
}

func TestInvoke_UnknownCall(t *testing.T) {
	transport := &failingTransport{}
	e := NewLive(testCatalog(), transport, WithSleep((&sleepRecorder{}).sleep))

	_, err := e.Invoke(context.Background(), "missing", nil)
	if !errors.Is(err, ErrUnknownCall) {
		t.Fatalf("expected ErrUnknownCall, got %v", err)
	}
	var tf *TerminalFailure
	if errors.As(err, &tf) {
		t.Error("unknown call must not be reported as a terminal failure")
	}
	if transport.calls != 0 {
		t.Errorf("expected no attempts, got %d", transport.calls)
	}
}

func TestInvoke_DefaultPolicy(t *testing.T) {
	transport := &failingTransport{err: errors.New("down")}
	rec := &sleepRecorder{}
	e := NewLive(testCatalog(), transport, WithSleep(rec.sleep))

	_, err := e.Invoke(context.Background(), "no_retry", nil)
	var tf *TerminalFailure
	if !errors.As(err, &tf) || tf.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %v", err)
	}
	if len(rec.waits) != 1 || rec.waits[0] != 500*time.Millisecond {
		t.Errorf("expected one 500ms sleep, got %v", rec.waits)
	}
}

func TestInvoke_PermanentErrorStopsRetrying(t *testing.T) {
	transport := &failingTransport{err: Permanent(errors.New("bad request"))}
	rec := &sleepRecorder{}
	e := NewLive(testCatalog(), transport, WithSleep(rec.sleep))

	_, err := e.Invoke(context.Background(), "always_fails", nil)
	var tf *TerminalFailure
	if !errors.As(err, &tf) || tf.Attempts != 1 {
		t.Fatalf("expected single attempt, got %v", err)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no sleep after a permanent error, got %d", len(rec.waits))
	}
}

func TestInvoke_ContextCancelledDuringBackoff(t *testing.T) {
	transport := &failingTransport{err: errors.New("down")}
	ctx, cancel := context.WithCancel(context.Background())
	e := NewLive(testCatalog(), transport, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := e.Invoke(ctx, "always_fails", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if transport.calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", transport.calls)
	}
}

func TestMock_ReturnsStubAndPaces(t *testing.T) {
	rec := &sleepRecorder{}
	e := NewMock(testCatalog(), WithSleep(rec.sleep))

	out, err := e.Invoke(context.Background(), "stub", nil)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if out["contour"] != "arch" {
		t.Errorf("unexpected stub output %v", out)
	}
	if len(rec.waits) != 1 || rec.waits[0] != 100*time.Millisecond {
		t.Errorf("expected one pacing sleep of 100ms, got %v", rec.waits)
	}

	out["contour"] = "mutated"
	again, _ := e.Invoke(context.Background(), "stub", nil)
	if again["contour"] != "arch" {
		t.Error("stub reply must not be shared between calls")
	}
	if e.Mode() != "mock" {
		t.Errorf("unexpected mode %q", e.Mode())
	}
}

func TestMock_WithoutPacing(t *testing.T) {
	rec := &sleepRecorder{}
	e := NewMock(testCatalog(), WithSleep(rec.sleep), WithPacing(false))

	if _, err := e.Invoke(context.Background(), "stub", nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.waits) != 0 {
		t.Errorf("expected no sleeps, got %v", rec.waits)
	}
}

type tempErr struct{ temp bool }

func (e tempErr) Error() string   { return "status" }
func (e tempErr) Temporary() bool { return e.temp }

func TestIsPermanent(t *testing.T) {
	if IsPermanent(errors.New("x")) {
		t.Error("plain errors are retryable")
	}
	if !IsPermanent(Permanent(errors.New("x"))) {
		t.Error("marked errors are permanent")
	}
	if !IsPermanent(tempErr{temp: false}) {
		t.Error("non-temporary errors are permanent")
	}
	if IsPermanent(tempErr{temp: true}) {
		t.Error("temporary errors are retryable")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("zero sleep returned %v", err)
	}
}
