package model

import "time"

// Project groups the generation jobs of one song
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Tempo       int       `json:"tempo"`
	Key         string    `json:"key"`
	Style       string    `json:"style"`
	DurationSec int       `json:"durationSec"`
	Instruments []string  `json:"instruments"`
	Lyrics      string    `json:"lyrics,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProjectCreateRequest represents the request to create a project
type ProjectCreateRequest struct {
	Name        string   `json:"name" validate:"required,min=1,max=200"`
	Tempo       int      `json:"tempo" validate:"omitempty,min=40,max=200"`
	Key         string   `json:"key" validate:"omitempty,max=40"`
	Style       string   `json:"style" validate:"omitempty,max=100"`
	DurationSec int      `json:"duration_sec" validate:"omitempty,min=10,max=1200"`
	Instruments []string `json:"instruments" validate:"omitempty,max=16,dive,min=1,max=60"`
	Lyrics      string   `json:"lyrics" validate:"omitempty,max=20000"`
}

// Project defaults applied to omitted fields
const (
	DefaultTempo       = 80
	DefaultKey         = "C minor"
	DefaultStyle       = "Romantic"
	DefaultDurationSec = 120
)

// DefaultInstruments is used when a project names none
var DefaultInstruments = []string{"Piano", "Strings", "Pads"}

// ProjectCreateResponse is returned after a project is created
type ProjectCreateResponse struct {
	ProjectID string `json:"projectId"`
}
