package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/store"
)

// ProjectService manages song projects
type ProjectService struct {
	projects store.ProjectStore
}

func NewProjectService(projects store.ProjectStore) *ProjectService {
	return &ProjectService{projects: projects}
}

// Create stores a new project, filling omitted fields with defaults
func (s *ProjectService) Create(ctx context.Context, req *model.ProjectCreateRequest) (*model.Project, error) {
	p := &model.Project{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Tempo:       req.Tempo,
		Key:         req.Key,
		Style:       req.Style,
		DurationSec: req.DurationSec,
		Instruments: req.Instruments,
		Lyrics:      req.Lyrics,
		CreatedAt:   time.Now().UTC(),
	}
	if p.Tempo == 0 {
		p.Tempo = model.DefaultTempo
	}
	if p.Key == "" {
		p.Key = model.DefaultKey
	}
	if p.Style == "" {
		p.Style = model.DefaultStyle
	}
	if p.DurationSec == 0 {
		p.DurationSec = model.DefaultDurationSec
	}
	if len(p.Instruments) == 0 {
		p.Instruments = append([]string(nil), model.DefaultInstruments...)
	}

	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}
	return p, nil
}

// Get returns a project by id
func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}
