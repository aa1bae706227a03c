package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/makeasinger/studio/internal/model"
)

const masterSeconds = 10

// Mix balances stems and masters them to a loudness target.
type Mix struct {
	env *Env
}

func NewMix(env *Env) *Mix { return &Mix{env: env} }

func (s *Mix) Name() string { return string(model.JobTypeMix) }

func (s *Mix) Produce(ctx context.Context, in *Inputs, prior map[string]any, r Reporter) (*Output, error) {
	r.Report(30, "Balancing tracks")
	if err := s.env.pause(ctx); err != nil {
		return nil, err
	}

	stems := in.Stems
	if len(stems) == 0 {
		stems = stringsFrom(prior, "stems")
		if v := stringFrom(prior, "vocalUrl"); v != "" {
			stems = append(stems, v)
		}
	}
	if len(stems) == 0 {
		return nil, errors.New("no stems to mix")
	}

	lufs := model.DefaultTargetLUFS
	if in.TargetLUFS != nil {
		lufs = *in.TargetLUFS
	}

	if _, err := s.env.Invoker.Invoke(ctx, "mix_master", map[string]any{
		"stemCount": len(stems),
		"lufs":      lufs,
	}); err != nil {
		return nil, fmt.Errorf("mix and master: %w", err)
	}

	out := &Output{Result: map[string]any{}}
	processed := make([]string, 0, len(stems))
	for i, src := range stems {
		a, err := s.env.storeWAV(ctx, in.ProjectID, masterSeconds, map[string]any{"source": src})
		if err != nil {
			return out, err
		}
		out.Assets = append(out.Assets, a)
		processed = append(processed, a.URL)
		r.Report(30+50*(i+1)/len(stems), fmt.Sprintf("Processed stem %d of %d", i+1, len(stems)))
	}
	out.Result["processedStems"] = processed

	master, err := s.env.storeWAV(ctx, in.ProjectID, masterSeconds, map[string]any{"lufs": lufs})
	if err != nil {
		return out, err
	}
	out.Assets = append(out.Assets, master)
	r.Report(90, "Mastering")

	out.Result["masterUrl"] = master.URL
	out.Result["lufs"] = lufs
	out.Message = "Master ready"
	return out, nil
}
