package model

// InstrumentalRequest represents the request to generate instrumental stems
type InstrumentalRequest struct {
	ProjectID   string   `json:"projectId" validate:"required,max=64"`
	Tempo       int      `json:"tempo" validate:"required,min=40,max=200"`
	Key         string   `json:"key" validate:"required,max=40"`
	Instruments []string `json:"instruments" validate:"required,min=1,max=16,dive,min=1,max=60"`
	LengthSec   int      `json:"length_sec" validate:"required,min=1,max=1200"`
	Style       string   `json:"style" validate:"required,max=100"`
}

// MelodyRequest represents the request to compose a melody from lyrics
type MelodyRequest struct {
	ProjectID string `json:"projectId" validate:"required,max=64"`
	Lyrics    string `json:"lyrics" validate:"required,max=20000"`
	Style     string `json:"style" validate:"required,max=100"`
	Tempo     int    `json:"tempo" validate:"required,min=40,max=200"`
	Key       string `json:"key" validate:"required,max=40"`
}

// VocalRequest represents the request to synthesize vocals
type VocalRequest struct {
	ProjectID      string `json:"projectId" validate:"required,max=64"`
	VoiceProfileID string `json:"voiceProfileId" validate:"required,max=64"`
	MelodyURL      string `json:"melodyUrl" validate:"required,max=2048"`
	Lyrics         string `json:"lyrics" validate:"required,max=20000"`
}

// MixRequest represents the request to mix and master stems
type MixRequest struct {
	ProjectID        string   `json:"projectId" validate:"required,max=64"`
	Stems            []string `json:"stems" validate:"required,min=1,max=32,dive,min=1,max=2048"`
	MasterTargetLUFS *float64 `json:"masterTargetLUFS" validate:"omitempty,min=-30,max=0"`
}

// VideoRequest represents the request to render a lyric video
type VideoRequest struct {
	ProjectID   string `json:"projectId" validate:"required,max=64"`
	AudioURL    string `json:"audioUrl" validate:"required,max=2048"`
	Style       string `json:"style" validate:"required,max=100"`
	AspectRatio string `json:"aspectRatio" validate:"omitempty,oneof=16:9 9:16 1:1 4:5"`
}

// CreateRequest represents the request to run the full song pipeline
type CreateRequest struct {
	ProjectID      string   `json:"projectId" validate:"required,max=64"`
	Tempo          int      `json:"tempo" validate:"required,min=40,max=200"`
	Key            string   `json:"key" validate:"required,max=40"`
	Style          string   `json:"style" validate:"required,max=100"`
	Lyrics         string   `json:"lyrics" validate:"required,max=20000"`
	Instruments    []string `json:"instruments" validate:"required,min=1,max=16,dive,min=1,max=60"`
	LengthSec      int      `json:"length_sec" validate:"omitempty,min=1,max=1200"`
	VoiceProfileID string   `json:"voiceProfileId" validate:"omitempty,max=64"`
	AspectRatio    string   `json:"aspectRatio" validate:"omitempty,oneof=16:9 9:16 1:1 4:5"`
}

// Request defaults
const (
	DefaultTargetLUFS  = -14.0
	DefaultAspectRatio = "16:9"
	DefaultLengthSec   = 30
)
