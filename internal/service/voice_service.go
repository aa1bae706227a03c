package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/model"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/store"
)

const demoSeconds = 2

// Clip is one uploaded reference recording
type Clip struct {
	Name string
	Data []byte
}

// VoiceUpload describes a new voice profile
type VoiceUpload struct {
	Name   string
	Locale model.Locale
	Gender string
	Clips  []Clip
}

// VoiceService manages voice profiles
type VoiceService struct {
	voices     store.VoiceStore
	sink       pipeline.AssetSink
	sampleRate int
	logger     *zap.Logger
}

func NewVoiceService(voices store.VoiceStore, sink pipeline.AssetSink, sampleRate int, logger *zap.Logger) *VoiceService {
	return &VoiceService{
		voices:     voices,
		sink:       sink,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Upload stores the clips, checks their quality and renders a demo clip.
// Clips failing the checks are kept; the report says which ones failed.
func (s *VoiceService) Upload(ctx context.Context, up *VoiceUpload) (*model.VoiceUploadResponse, error) {
	id := uuid.New().String()
	profile := &model.VoiceProfile{
		ID:            id,
		Name:          up.Name,
		Locale:        up.Locale,
		Gender:        up.Gender,
		Files:         []string{},
		QualityReport: []model.ClipCheck{},
		QualityOK:     true,
		CreatedAt:     time.Now().UTC(),
	}

	for _, clip := range up.Clips {
		a, err := s.sink.Store(ctx, asset.StoreRequest{
			Kind:        model.AssetKindWAV,
			Data:        clip.Data,
			Ext:         ".wav",
			ContentType: asset.WAVContentType,
			Meta:        map[string]any{"voiceProfileId": id, "original": clip.Name},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store clip %s: %w", clip.Name, err)
		}

		check := asset.AssessClip(a.URL, clip.Data)
		profile.Files = append(profile.Files, a.URL)
		profile.QualityReport = append(profile.QualityReport, check)
		profile.QualityOK = profile.QualityOK && asset.Passed(check)
	}

	demo, err := s.sink.Store(ctx, asset.StoreRequest{
		Kind:        model.AssetKindWAV,
		Data:        asset.SilenceWAV(demoSeconds, s.sampleRate),
		Ext:         ".wav",
		ContentType: asset.WAVContentType,
		Meta:        map[string]any{"voiceProfileId": id, "demo": true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render demo clip: %w", err)
	}
	profile.DemoURL = demo.URL

	if err := s.voices.CreateVoice(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save voice profile: %w", err)
	}

	s.logger.Info("voice profile created",
		zap.String("voice_id", id),
		zap.Int("clips", len(up.Clips)),
		zap.Bool("quality_ok", profile.QualityOK),
	)

	return &model.VoiceUploadResponse{
		VoiceProfileID: id,
		Quality:        profile.QualityReport,
		QualityOK:      profile.QualityOK,
		DemoURL:        demo.URL,
	}, nil
}

// Delete removes a voice profile
func (s *VoiceService) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.voices.DeleteVoice(ctx, id); err != nil {
		return fmt.Errorf("failed to delete voice profile: %w", err)
	}
	return nil
}
