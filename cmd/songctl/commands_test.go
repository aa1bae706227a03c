package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/makeasinger/studio/internal/model"
)

type fakeStudio struct {
	mu       sync.Mutex
	projects []model.ProjectCreateRequest
	creates  []model.CreateRequest
	polls    int
	failJob  bool
	inflight []string
}

func (f *fakeStudio) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		var req model.ProjectCreateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.projects = append(f.projects, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.ProjectCreateResponse{ProjectID: "proj-1"})
	})
	mux.HandleFunc("/api/generate/create", func(w http.ResponseWriter, r *http.Request) {
		var req model.CreateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.creates = append(f.creates, req)
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(model.SubmitResponse{JobID: "job-1", Status: model.JobStatusQueued})
	})
	mux.HandleFunc("/api/job/job-1/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		polls := f.polls
		f.mu.Unlock()

		job := model.Job{ID: "job-1", Type: model.JobTypeCreate, Status: model.JobStatusRunning, Progress: 45, Message: "Draft melody created"}
		if polls >= 2 {
			job.Status, job.Progress, job.Message = model.JobStatusDone, 100, "Video ready"
			job.Result = map[string]any{"videoUrl": "/assets/video/proj-1/v.mp4"}
			if f.failJob {
				job.Status, job.Progress, job.Message = model.JobStatusError, 45, "melody_compose failed"
			}
		}
		_ = json.NewEncoder(w).Encode(job)
	})
	mux.HandleFunc("/api/jobs/inflight", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.InFlightResponse{Jobs: f.inflight, Count: len(f.inflight)})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"Job not found"}}`))
	})
	return mux
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()

	prev := pollInterval
	pollInterval = time.Millisecond
	t.Cleanup(func() { pollInterval = prev })

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateCommand_WaitsForResult(t *testing.T) {
	fake := &fakeStudio{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out, err := runCLI(t, srv, "create", "--wait", "--tempo", "100")
	if err != nil {
		t.Fatalf("create failed: %v\n%s", err, out)
	}
	if len(fake.projects) != 1 || len(fake.creates) != 1 {
		t.Fatalf("expected one project and one job, got %d and %d", len(fake.projects), len(fake.creates))
	}
	if got := fake.creates[0]; got.ProjectID != "proj-1" || got.Tempo != 100 || len(got.Instruments) != 2 {
		t.Errorf("unexpected create request %+v", got)
	}
	for _, want := range []string{"Project: proj-1", "Job: job-1", "progress=45", "Video ready", "videoUrl"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCreateCommand_FailedJob(t *testing.T) {
	fake := &fakeStudio{failJob: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := runCLI(t, srv, "create", "--project", "proj-9", "--wait")
	if err == nil || !strings.Contains(err.Error(), "melody_compose failed") {
		t.Fatalf("expected job failure, got %v", err)
	}
	if len(fake.projects) != 0 {
		t.Error("an existing project must not be recreated")
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	fake := &fakeStudio{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out, err := runCLI(t, srv, "--json", "status", "job-1")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	var job model.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("expected JSON output, got %q", out)
	}
	if job.Status != model.JobStatusRunning || job.Progress != 45 {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestStatusCommand_NotFound(t *testing.T) {
	srv := httptest.NewServer((&fakeStudio{}).handler())
	defer srv.Close()

	_, err := runCLI(t, srv, "status", "missing")
	var apiErr *apiError
	if err == nil || !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND api error, got %v", err)
	}
}

func TestInFlightCommand(t *testing.T) {
	fake := &fakeStudio{inflight: []string{"job-a", "job-b"}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	out, err := runCLI(t, srv, "inflight")
	if err != nil {
		t.Fatalf("inflight failed: %v", err)
	}
	if !strings.Contains(out, "job-a") || !strings.Contains(out, "job-b") {
		t.Errorf("unexpected output:\n%s", out)
	}

	fake.inflight = nil
	out, _ = runCLI(t, srv, "inflight")
	if !strings.Contains(out, "No jobs in flight") {
		t.Errorf("unexpected empty output:\n%s", out)
	}
}

func TestRenderTable(t *testing.T) {
	got := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	if !strings.Contains(got, "A") || !strings.Contains(got, "1") || !strings.Contains(got, "╭") {
		t.Errorf("unexpected table:\n%s", got)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("expected empty table for no headers")
	}
}
