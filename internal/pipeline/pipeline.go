// Package pipeline defines the generation stages and the plans that chain
// them into jobs.
package pipeline

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/executor"
	"github.com/makeasinger/studio/internal/model"
)

// Reporter receives a stage's progress. Progress is stage-local, 0 to 100.
type Reporter interface {
	Report(progress int, message string)
	Log(text string)
}

// Inputs carries every parameter a stage may need. Fields a stage does not
// use are ignored.
type Inputs struct {
	ProjectID      string   `json:"projectId,omitempty"`
	Tempo          int      `json:"tempo,omitempty"`
	Key            string   `json:"key,omitempty"`
	Style          string   `json:"style,omitempty"`
	Lyrics         string   `json:"lyrics,omitempty"`
	Instruments    []string `json:"instruments,omitempty"`
	LengthSec      int      `json:"lengthSec,omitempty"`
	VoiceProfileID string   `json:"voiceProfileId,omitempty"`
	MelodyURL      string   `json:"melodyUrl,omitempty"`
	Stems          []string `json:"stems,omitempty"`
	TargetLUFS     *float64 `json:"targetLufs,omitempty"`
	AudioURL       string   `json:"audioUrl,omitempty"`
	AspectRatio    string   `json:"aspectRatio,omitempty"`
}

// Output is what a stage hands back to the orchestrator.
type Output struct {
	Assets  []*model.Asset
	Result  map[string]any
	Message string
}

// Stage produces one kind of artifact.
type Stage interface {
	Name() string
	// Produce may read outputs of earlier stages from prior. On error it may
	// still return the partial output it produced.
	Produce(ctx context.Context, in *Inputs, prior map[string]any, r Reporter) (*Output, error)
}

// AssetSink stores stage artifacts.
type AssetSink interface {
	Store(ctx context.Context, req asset.StoreRequest) (*model.Asset, error)
}

// Env holds what every stage shares.
type Env struct {
	Invoker    executor.Invoker
	Sink       AssetSink
	Latency    time.Duration // simulated work per stage; 0 disables
	SampleRate int
	Sleep      executor.SleepFunc
}

func (e *Env) pause(ctx context.Context) error {
	if e.Latency <= 0 {
		return ctx.Err()
	}
	sleep := e.Sleep
	if sleep == nil {
		sleep = executor.Sleep
	}
	return sleep(ctx, e.Latency)
}

func (e *Env) sampleRate() int {
	if e.SampleRate <= 0 {
		return 44100
	}
	return e.SampleRate
}

func (e *Env) storeWAV(ctx context.Context, projectID string, seconds float64, meta map[string]any) (*model.Asset, error) {
	return e.Sink.Store(ctx, asset.StoreRequest{
		Kind:        model.AssetKindWAV,
		Data:        asset.SilenceWAV(seconds, e.sampleRate()),
		Ext:         ".wav",
		ContentType: asset.WAVContentType,
		ProjectID:   projectID,
		Meta:        meta,
	})
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}

func stringFrom(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func stringsFrom(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
