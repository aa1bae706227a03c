package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/makeasinger/studio/internal/model"
)

const (
	vocalTakes       = 2
	vocalTakeSeconds = 6
)

// Vocal synthesizes vocal takes for a melody with a voice profile.
type Vocal struct {
	env *Env
}

func NewVocal(env *Env) *Vocal { return &Vocal{env: env} }

func (s *Vocal) Name() string { return string(model.JobTypeVocal) }

func (s *Vocal) Produce(ctx context.Context, in *Inputs, prior map[string]any, r Reporter) (*Output, error) {
	r.Report(20, "Adapting voice")
	if err := s.env.pause(ctx); err != nil {
		return nil, err
	}

	melody := in.MelodyURL
	if melody == "" {
		melody = stringFrom(prior, "midiUrl")
	}
	if melody == "" {
		return nil, errors.New("vocal synthesis needs a melody")
	}

	if _, err := s.env.Invoker.Invoke(ctx, "vocal_synthesize", map[string]any{
		"voiceProfileId": in.VoiceProfileID,
		"melodyUrl":      melody,
		"lyrics":         in.Lyrics,
	}); err != nil {
		return nil, fmt.Errorf("vocal synthesis: %w", err)
	}

	out := &Output{Result: map[string]any{}}
	takes := make([]string, 0, vocalTakes)
	for i := 0; i < vocalTakes; i++ {
		a, err := s.env.storeWAV(ctx, in.ProjectID, vocalTakeSeconds, map[string]any{
			"take":           i + 1,
			"voiceProfileId": in.VoiceProfileID,
		})
		if err != nil {
			return out, err
		}
		out.Assets = append(out.Assets, a)
		takes = append(takes, a.URL)
		out.Result["takes"] = append([]string(nil), takes...)
		r.Report(20+35*(i+1), fmt.Sprintf("Take %d rendered", i+1))
	}

	out.Result["takes"] = takes
	out.Result["vocalUrl"] = takes[0]
	out.Message = "Vocals ready"
	return out, nil
}
