package pipeline

import "github.com/makeasinger/studio/internal/model"

// Step runs one stage; its local 0..100 progress is mapped onto the job's
// range ending at Until.
type Step struct {
	Stage Stage
	Until int
}

// Plan is the ordered list of stages a job type runs.
type Plan struct {
	Type          model.JobType
	StartProgress int
	Steps         []Step
}

// Registry maps job types to plans.
type Registry struct {
	plans map[model.JobType]Plan
}

// NewRegistry builds the plans for every job type over a shared Env.
func NewRegistry(env *Env) *Registry {
	instrumental := NewInstrumental(env)
	melody := NewMelody(env)
	vocal := NewVocal(env)
	mix := NewMix(env)
	video := NewVideo(env)

	single := func(t model.JobType, s Stage) Plan {
		return Plan{Type: t, Steps: []Step{{Stage: s, Until: 100}}}
	}

	return &Registry{plans: map[model.JobType]Plan{
		model.JobTypeInstrumental: single(model.JobTypeInstrumental, instrumental),
		model.JobTypeMelody:       single(model.JobTypeMelody, melody),
		model.JobTypeVocal:        single(model.JobTypeVocal, vocal),
		model.JobTypeMix:          single(model.JobTypeMix, mix),
		model.JobTypeVideo:        single(model.JobTypeVideo, video),
		model.JobTypeCreate: {
			Type:          model.JobTypeCreate,
			StartProgress: 5,
			Steps: []Step{
				{Stage: instrumental, Until: 25},
				{Stage: melody, Until: 45},
				{Stage: vocal, Until: 70},
				{Stage: mix, Until: 85},
				{Stage: video, Until: 100},
			},
		},
	}}
}

// Plan returns the plan for t.
func (r *Registry) Plan(t model.JobType) (Plan, bool) {
	p, ok := r.plans[t]
	return p, ok
}
