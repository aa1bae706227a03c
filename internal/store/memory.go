package store

import (
	"context"
	"sync"
	"time"

	"github.com/makeasinger/studio/internal/model"
)

// Memory is an in-process Store. It is the default backend for local
// development and the one used by tests.
type Memory struct {
	mu       sync.RWMutex
	jobs     map[string]*model.Job
	assets   map[string]*model.Asset
	projects map[string]*model.Project
	voices   map[string]*model.VoiceProfile
	now      func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[string]*model.Job),
		assets:   make(map[string]*model.Asset),
		projects: make(map[string]*model.Project),
		voices:   make(map[string]*model.VoiceProfile),
		now:      time.Now,
	}
}

func (m *Memory) CreateJob(_ context.Context, job *model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; ok {
		return ErrConflict
	}
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *Memory) GetJob(_ context.Context, id string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return j.Clone(), nil
}

func (m *Memory) UpdateJob(_ context.Context, id string, u JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	next := j.Clone()
	if err := u.Apply(next, m.now()); err != nil {
		return err
	}
	m.jobs[id] = next
	return nil
}

func (m *Memory) AppendJobLog(_ context.Context, id, line string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	return appendLog(j, line, m.now())
}

func (m *Memory) CreateAsset(_ context.Context, a *model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.assets[a.ID]; ok {
		return ErrConflict
	}
	cp := *a
	m.assets[a.ID] = &cp
	return nil
}

func (m *Memory) GetAsset(_ context.Context, id string) (*model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.assets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *Memory) CreateProject(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.projects[p.ID]; ok {
		return ErrConflict
	}
	cp := *p
	cp.Instruments = append([]string(nil), p.Instruments...)
	m.projects[p.ID] = &cp
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Instruments = append([]string(nil), p.Instruments...)
	return &cp, nil
}

func (m *Memory) CreateVoice(_ context.Context, v *model.VoiceProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.voices[v.ID]; ok {
		return ErrConflict
	}
	cp := *v
	m.voices[v.ID] = &cp
	return nil
}

func (m *Memory) GetVoice(_ context.Context, id string) (*model.VoiceProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.voices[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) DeleteVoice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.voices[id]; !ok {
		return ErrNotFound
	}
	delete(m.voices, id)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
