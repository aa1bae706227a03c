package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/model"
)

// Seconds allotted to each non-blank lyric line
const lineSeconds = 2.0

// LyricSpan places one lyric line on the timeline.
type LyricSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// LyricTimestamps gives consecutive non-blank lines back-to-back slots
// starting at zero. Blank lines take no time.
func LyricTimestamps(lyrics string) []LyricSpan {
	spans := []LyricSpan{}
	t := 0.0
	for _, line := range strings.Split(lyrics, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		spans = append(spans, LyricSpan{Start: round2(t), End: round2(t + lineSeconds), Text: text})
		t += lineSeconds
	}
	return spans
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Melody composes a melody from lyrics and renders a guide track.
type Melody struct {
	env *Env
}

func NewMelody(env *Env) *Melody { return &Melody{env: env} }

func (s *Melody) Name() string { return string(model.JobTypeMelody) }

func (s *Melody) Produce(ctx context.Context, in *Inputs, _ map[string]any, r Reporter) (*Output, error) {
	r.Report(5, "Analyzing lyrics and style")
	r.Log("Parsing lyrics and estimating syllable counts")
	if err := s.env.pause(ctx); err != nil {
		return nil, err
	}

	reply, err := s.env.Invoker.Invoke(ctx, "melody_compose", map[string]any{
		"style":  in.Style,
		"key":    in.Key,
		"tempo":  in.Tempo,
		"lyrics": in.Lyrics,
	})
	if err != nil {
		return nil, fmt.Errorf("melody composition: %w", err)
	}

	meta := map[string]any{"tempo": in.Tempo, "key": in.Key}
	if contour, ok := reply["contour"]; ok {
		meta["contour"] = contour
	}

	out := &Output{Result: map[string]any{}}
	midi, err := s.env.Sink.Store(ctx, asset.StoreRequest{
		Kind:        model.AssetKindMIDI,
		Data:        midiPlaceholder(in),
		Ext:         ".mid.txt",
		ContentType: "text/plain",
		ProjectID:   in.ProjectID,
		Meta:        meta,
	})
	if err != nil {
		return out, err
	}
	out.Assets = append(out.Assets, midi)
	out.Result["midiUrl"] = midi.URL
	r.Report(40, "Draft melody created")
	r.Log("Melody file: " + midi.Key)

	guideSeconds := math.Max(4, math.Min(60, float64(in.Tempo)/10))
	guide, err := s.env.storeWAV(ctx, in.ProjectID, guideSeconds, nil)
	if err != nil {
		return out, err
	}
	out.Assets = append(out.Assets, guide)
	out.Result["guideUrl"] = guide.URL
	r.Report(75, "Rendering guide audio")

	out.Result["lyricTimestamps"] = LyricTimestamps(in.Lyrics)
	out.Message = "Melody ready"
	return out, nil
}

// midiPlaceholder writes a text stand-in for a MIDI file: a header line and
// one note per non-blank lyric line, timed by the line's position.
func midiPlaceholder(in *Inputs) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "MIDI_PLACEHOLDER tempo=%d key=%s style=%s\n", in.Tempo, in.Key, in.Style)
	for i, line := range strings.Split(in.Lyrics, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "t=%.2fs lyric=%s note=C4 len=1.0\n", float64(i)*lineSeconds, text)
	}
	return []byte(b.String())
}
