package service

import (
	"context"
	"fmt"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/orchestrator"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/store"
)

// Messages a job carries while it waits in the queue
const (
	queuedInstrumental = "Generating instrumental stems..."
	queuedMelody       = "Generating melody from lyrics..."
	queuedVocal        = "Synthesizing vocals"
	queuedMix          = "Mixing and mastering to %g LUFS"
	queuedVideo        = "Generating video with subtitles"
	queuedCreate       = "Creating song"
)

// JobRunner accepts jobs and reports which ones are still running
type JobRunner interface {
	Submit(ctx context.Context, sub orchestrator.Submission) (string, error)
	InFlight(ctx context.Context) ([]string, error)
}

// GenerationService submits generation jobs and reads their status
type GenerationService struct {
	runner JobRunner
	jobs   store.JobStore
	voices store.VoiceStore
}

func NewGenerationService(runner JobRunner, jobs store.JobStore, voices store.VoiceStore) *GenerationService {
	return &GenerationService{
		runner: runner,
		jobs:   jobs,
		voices: voices,
	}
}

// Instrumental queues one stem per instrument
func (s *GenerationService) Instrumental(ctx context.Context, req *model.InstrumentalRequest) (*model.SubmitResponse, error) {
	return s.submit(ctx, model.JobTypeInstrumental, req.ProjectID, queuedInstrumental, pipeline.Inputs{
		ProjectID:   req.ProjectID,
		Tempo:       req.Tempo,
		Key:         req.Key,
		Style:       req.Style,
		Instruments: req.Instruments,
		LengthSec:   req.LengthSec,
	})
}

// Melody queues melody composition from lyrics
func (s *GenerationService) Melody(ctx context.Context, req *model.MelodyRequest) (*model.SubmitResponse, error) {
	return s.submit(ctx, model.JobTypeMelody, req.ProjectID, queuedMelody, pipeline.Inputs{
		ProjectID: req.ProjectID,
		Tempo:     req.Tempo,
		Key:       req.Key,
		Style:     req.Style,
		Lyrics:    req.Lyrics,
	})
}

// Vocal queues vocal synthesis with an existing voice profile
func (s *GenerationService) Vocal(ctx context.Context, req *model.VocalRequest) (*model.SubmitResponse, error) {
	if err := s.checkVoice(ctx, req.VoiceProfileID); err != nil {
		return nil, err
	}
	return s.submit(ctx, model.JobTypeVocal, req.ProjectID, queuedVocal, pipeline.Inputs{
		ProjectID:      req.ProjectID,
		VoiceProfileID: req.VoiceProfileID,
		MelodyURL:      req.MelodyURL,
		Lyrics:         req.Lyrics,
	})
}

// Mix queues mixing and mastering of the given stems
func (s *GenerationService) Mix(ctx context.Context, req *model.MixRequest) (*model.SubmitResponse, error) {
	lufs := model.DefaultTargetLUFS
	if req.MasterTargetLUFS != nil {
		lufs = *req.MasterTargetLUFS
	}
	return s.submit(ctx, model.JobTypeMix, req.ProjectID, fmt.Sprintf(queuedMix, lufs), pipeline.Inputs{
		ProjectID:  req.ProjectID,
		Stems:      req.Stems,
		TargetLUFS: &lufs,
	})
}

// Video queues a lyric video render
func (s *GenerationService) Video(ctx context.Context, req *model.VideoRequest) (*model.SubmitResponse, error) {
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = model.DefaultAspectRatio
	}
	return s.submit(ctx, model.JobTypeVideo, req.ProjectID, queuedVideo, pipeline.Inputs{
		ProjectID:   req.ProjectID,
		AudioURL:    req.AudioURL,
		Style:       req.Style,
		AspectRatio: aspect,
	})
}

// Create queues the full song pipeline as one job
func (s *GenerationService) Create(ctx context.Context, req *model.CreateRequest) (*model.SubmitResponse, error) {
	voice := req.VoiceProfileID
	if voice == "" {
		voice = model.DefaultVoiceProfileID
	}
	if err := s.checkVoice(ctx, voice); err != nil {
		return nil, err
	}
	length := req.LengthSec
	if length == 0 {
		length = model.DefaultLengthSec
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = model.DefaultAspectRatio
	}
	lufs := model.DefaultTargetLUFS

	return s.submit(ctx, model.JobTypeCreate, req.ProjectID, queuedCreate, pipeline.Inputs{
		ProjectID:      req.ProjectID,
		Tempo:          req.Tempo,
		Key:            req.Key,
		Style:          req.Style,
		Lyrics:         req.Lyrics,
		Instruments:    req.Instruments,
		LengthSec:      length,
		VoiceProfileID: voice,
		TargetLUFS:     &lufs,
		AspectRatio:    aspect,
	})
}

// GetStatus returns a snapshot of a job
func (s *GenerationService) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	if err := checkID(jobID); err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// InFlight lists jobs the dispatcher has not finished
func (s *GenerationService) InFlight(ctx context.Context) (*model.InFlightResponse, error) {
	ids, err := s.runner.InFlight(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list in-flight jobs: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return &model.InFlightResponse{Jobs: ids, Count: len(ids)}, nil
}

func (s *GenerationService) submit(ctx context.Context, t model.JobType, projectID, msg string, in pipeline.Inputs) (*model.SubmitResponse, error) {
	id, err := s.runner.Submit(ctx, orchestrator.Submission{
		Type:      t,
		ProjectID: projectID,
		Message:   msg,
		Inputs:    in,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit %s job: %w", t, err)
	}
	return &model.SubmitResponse{JobID: id, Status: model.JobStatusQueued}, nil
}

// checkVoice accepts the built-in voice and any stored profile
func (s *GenerationService) checkVoice(ctx context.Context, id string) error {
	if id == model.DefaultVoiceProfileID {
		return nil
	}
	if err := checkID(id); err != nil {
		return fmt.Errorf("voice profile %q: %w", id, err)
	}
	if _, err := s.voices.GetVoice(ctx, id); err != nil {
		return fmt.Errorf("voice profile %q: %w", id, err)
	}
	return nil
}
