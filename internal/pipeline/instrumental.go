package pipeline

import (
	"context"
	"fmt"

	"github.com/makeasinger/studio/internal/model"
)

const maxStemSeconds = 30

// Instrumental renders one stem per requested instrument.
type Instrumental struct {
	env *Env
}

func NewInstrumental(env *Env) *Instrumental { return &Instrumental{env: env} }

func (s *Instrumental) Name() string { return string(model.JobTypeInstrumental) }

func (s *Instrumental) Produce(ctx context.Context, in *Inputs, _ map[string]any, r Reporter) (*Output, error) {
	r.Report(10, "Preparing stems")
	if err := s.env.pause(ctx); err != nil {
		return nil, err
	}

	length := in.LengthSec
	if length <= 0 {
		length = model.DefaultLengthSec
	}
	seconds := min(maxStemSeconds, length)
	per := 70.0 / float64(max(1, len(in.Instruments)))

	out := &Output{Result: map[string]any{}}
	stems := make([]string, 0, len(in.Instruments))
	for i, inst := range in.Instruments {
		_, err := s.env.Invoker.Invoke(ctx, "instrumental_stem", map[string]any{
			"instrument": inst,
			"style":      in.Style,
			"key":        in.Key,
			"tempo":      in.Tempo,
			"length_sec": seconds,
		})
		if err != nil {
			return out, fmt.Errorf("%s stem: %w", inst, err)
		}

		a, err := s.env.storeWAV(ctx, in.ProjectID, float64(seconds), map[string]any{"instrument": inst})
		if err != nil {
			return out, err
		}
		out.Assets = append(out.Assets, a)
		stems = append(stems, a.URL)
		out.Result["stems"] = append([]string(nil), stems...)

		r.Report(min(90, int(10+per*float64(i+1))), inst+" generated")
	}

	r.Report(90, "Finalizing stems")
	out.Result["stems"] = stems
	out.Message = "Instrumental stems ready"
	return out, nil
}
