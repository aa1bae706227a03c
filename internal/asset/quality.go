package asset

import (
	"bytes"
	"math"

	"github.com/makeasinger/studio/internal/model"
)

// Voice clip acceptance bounds
const (
	MinClipSampleRate  = 16000
	MaxClipSampleRate  = 48000
	MinClipDurationSec = 0.3
)

// AssessClip checks a voice reference clip. Unreadable files yield a zeroed
// report that fails every check.
func AssessClip(url string, data []byte) model.ClipCheck {
	check := model.ClipCheck{File: url}

	info, err := ParseWAV(bytes.NewReader(data))
	if err != nil {
		check.Error = err.Error()
		return check
	}

	check.Channels = info.Channels
	check.SampleRate = info.SampleRate
	check.DurationSec = math.Round(info.DurationSec*100) / 100
	check.MonoOK = info.Channels == 1
	check.SampleOK = info.SampleRate >= MinClipSampleRate && info.SampleRate <= MaxClipSampleRate
	check.DurationOK = check.DurationSec >= MinClipDurationSec
	return check
}

// Passed reports whether the clip meets every check.
func Passed(c model.ClipCheck) bool {
	return c.MonoOK && c.SampleOK && c.DurationOK
}
