// Package store persists jobs, assets, projects and voice profiles.
//
// Every backend enforces the job state machine itself: a job in a terminal
// status is never modified again and only queued -> running -> done|error
// transitions are accepted.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/makeasinger/studio/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when creating a record whose id is taken.
	ErrConflict = errors.New("already exists")
	// ErrTerminal is returned when writing to a job that is done or error.
	ErrTerminal = errors.New("job is in a terminal state")
	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobStore handles the persistence of jobs.
type JobStore interface {
	// CreateJob inserts a new job.
	CreateJob(ctx context.Context, job *model.Job) error

	// GetJob returns a snapshot of a job by its ID.
	GetJob(ctx context.Context, id string) (*model.Job, error)

	// UpdateJob atomically applies a partial update to a job.
	UpdateJob(ctx context.Context, id string, u JobUpdate) error

	// AppendJobLog appends one line to the job's log.
	AppendJobLog(ctx context.Context, id, line string) error
}

// AssetStore records stored artifacts.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *model.Asset) error
	GetAsset(ctx context.Context, id string) (*model.Asset, error)
}

// ProjectStore persists projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
}

// VoiceStore persists voice profiles.
type VoiceStore interface {
	CreateVoice(ctx context.Context, v *model.VoiceProfile) error
	GetVoice(ctx context.Context, id string) (*model.VoiceProfile, error)
	DeleteVoice(ctx context.Context, id string) error
}

// Store is implemented by every backend.
type Store interface {
	JobStore
	AssetStore
	ProjectStore
	VoiceStore
	Close() error
}

// JobUpdate is a partial update; nil fields are left unchanged.
type JobUpdate struct {
	Status      *model.JobStatus
	Progress    *int
	Message     *string
	Result      map[string]any // replaces the stored result when non-nil
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Apply validates u against j and mutates j in place.
// Progress never moves backwards and never exceeds 100.
func (u JobUpdate) Apply(j *model.Job, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	if u.Status != nil && !j.Status.CanTransition(*u.Status) {
		return ErrInvalidTransition
	}

	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		p := *u.Progress
		if p > 100 {
			p = 100
		}
		if p > j.Progress {
			j.Progress = p
		}
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Result != nil {
		j.Result = make(map[string]any, len(u.Result))
		for k, v := range u.Result {
			j.Result[k] = v
		}
	}
	if u.StartedAt != nil {
		t := *u.StartedAt
		j.StartedAt = &t
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
	return nil
}

// appendLog validates that j may still receive log lines.
func appendLog(j *model.Job, line string, now time.Time) error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	j.Logs = append(j.Logs, line)
	j.UpdatedAt = now
	return nil
}
