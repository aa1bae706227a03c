package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/makeasinger/studio/internal/model"
)

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the decoded error envelope of a non-2xx response
type apiError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var env struct {
			Error apiError `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		env.Error.Status = resp.StatusCode
		return &env.Error
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) CreateProject(ctx context.Context, req *model.ProjectCreateRequest) (string, error) {
	var out model.ProjectCreateResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", req, &out); err != nil {
		return "", err
	}
	return out.ProjectID, nil
}

func (c *apiClient) CreateSong(ctx context.Context, req *model.CreateRequest) (*model.SubmitResponse, error) {
	var out model.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate/create", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) JobStatus(ctx context.Context, jobID string) (*model.Job, error) {
	var out model.Job
	if err := c.do(ctx, http.MethodGet, "/api/job/"+jobID+"/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) InFlight(ctx context.Context) (*model.InFlightResponse, error) {
	var out model.InFlightResponse
	if err := c.do(ctx, http.MethodGet, "/api/jobs/inflight", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// waitForJob polls until the job is terminal, calling onUpdate whenever its
// progress or message changes.
func (c *apiClient) waitForJob(ctx context.Context, jobID string, interval time.Duration, onUpdate func(*model.Job)) (*model.Job, error) {
	lastProgress, lastMessage := -1, ""
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Progress != lastProgress || job.Message != lastMessage {
			lastProgress, lastMessage = job.Progress, job.Message
			if onUpdate != nil {
				onUpdate(job)
			}
		}
		if job.Status.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
