package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/model"
)

const videoThumbnails = 4

// Video renders a lyric video and its thumbnails.
type Video struct {
	env *Env
}

func NewVideo(env *Env) *Video { return &Video{env: env} }

func (s *Video) Name() string { return string(model.JobTypeVideo) }

func (s *Video) Produce(ctx context.Context, in *Inputs, prior map[string]any, r Reporter) (*Output, error) {
	r.Report(25, "Compositing scenes")
	if err := s.env.pause(ctx); err != nil {
		return nil, err
	}

	audio := in.AudioURL
	if audio == "" {
		audio = stringFrom(prior, "masterUrl")
	}
	if audio == "" {
		return nil, errors.New("video rendering needs an audio track")
	}
	aspect := in.AspectRatio
	if aspect == "" {
		aspect = model.DefaultAspectRatio
	}

	if _, err := s.env.Invoker.Invoke(ctx, "video_render", map[string]any{
		"style":       in.Style,
		"aspectRatio": aspect,
		"audioUrl":    audio,
	}); err != nil {
		return nil, fmt.Errorf("video rendering: %w", err)
	}

	out := &Output{Result: map[string]any{}}
	thumbs := make([]string, 0, videoThumbnails)
	for i := 0; i < videoThumbnails; i++ {
		a, err := s.env.Sink.Store(ctx, asset.StoreRequest{
			Kind:        model.AssetKindImage,
			Data:        randomBytes(128),
			Ext:         ".png",
			ContentType: "image/png",
			ProjectID:   in.ProjectID,
			Meta:        map[string]any{"index": i},
		})
		if err != nil {
			return out, err
		}
		out.Assets = append(out.Assets, a)
		thumbs = append(thumbs, a.URL)
	}
	out.Result["thumbnails"] = thumbs
	r.Report(60, "Thumbnails ready")

	video, err := s.env.Sink.Store(ctx, asset.StoreRequest{
		Kind:        model.AssetKindVideo,
		Data:        randomBytes(2048),
		Ext:         ".mp4",
		ContentType: "video/mp4",
		ProjectID:   in.ProjectID,
		Meta:        map[string]any{"aspectRatio": aspect, "style": in.Style, "audioUrl": audio},
	})
	if err != nil {
		return out, err
	}
	out.Assets = append(out.Assets, video)
	r.Report(90, "Encoding video")

	out.Result["videoUrl"] = video.URL
	out.Message = "Video ready"
	return out, nil
}
