package model

import (
	"fmt"
	"time"
)

// Job represents one asynchronous unit of generation work
type Job struct {
	ID          string         `json:"id"`
	Type        JobType        `json:"type"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Message     string         `json:"message"`
	Logs        []string       `json:"logs"`
	Result      map[string]any `json:"result"`
	ProjectID   string         `json:"projectId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	StartedAt   *time.Time     `json:"startedAt,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

// Clone returns a deep enough copy for callers to mutate freely.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Logs = append([]string(nil), j.Logs...)
	c.Result = make(map[string]any, len(j.Result))
	for k, v := range j.Result {
		c.Result[k] = v
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// LogLine formats a job log entry as "<utc timestamp> - <text>".
func LogLine(at time.Time, text string) string {
	return fmt.Sprintf("%s - %s", at.UTC().Format(time.RFC3339Nano), text)
}

// SubmitResponse is returned by every job submission endpoint
type SubmitResponse struct {
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// InFlightResponse lists job ids the dispatcher has not finished yet
type InFlightResponse struct {
	Jobs  []string `json:"jobs"`
	Count int      `json:"count"`
}
