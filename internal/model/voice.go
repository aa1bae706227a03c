package model

import "time"

// VoiceProfile is a set of uploaded reference clips for vocal synthesis
type VoiceProfile struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Locale        Locale      `json:"locale"`
	Gender        string      `json:"gender"`
	Files         []string    `json:"files"`
	QualityReport []ClipCheck `json:"qualityReport"`
	QualityOK     bool        `json:"qualityOk"`
	DemoURL       string      `json:"demoUrl"`
	Preset        bool        `json:"preset"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// ClipCheck is the quality assessment of a single uploaded clip
type ClipCheck struct {
	File        string  `json:"file"`
	Channels    int     `json:"channels"`
	SampleRate  int     `json:"sampleRate"`
	DurationSec float64 `json:"durationSec"`
	MonoOK      bool    `json:"monoOk"`
	SampleOK    bool    `json:"srOk"`
	DurationOK  bool    `json:"durationOk"`
	Error       string  `json:"error,omitempty"`
}

// VoiceUploadResponse represents the response for a voice profile upload
type VoiceUploadResponse struct {
	VoiceProfileID string      `json:"voiceProfileId"`
	Quality        []ClipCheck `json:"quality"`
	QualityOK      bool        `json:"qualityOk"`
	DemoURL        string      `json:"demoUrl"`
}

// DefaultVoiceProfileID names the built-in voice used when none is given
const DefaultVoiceProfileID = "default"
