package model

// Job types
type JobType string

const (
	JobTypeInstrumental JobType = "instrumental"
	JobTypeMelody       JobType = "melody"
	JobTypeVocal        JobType = "vocal"
	JobTypeMix          JobType = "mix"
	JobTypeVideo        JobType = "video"
	JobTypeCreate       JobType = "create"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeInstrumental, JobTypeMelody, JobTypeVocal, JobTypeMix, JobTypeVideo, JobTypeCreate:
		return true
	}
	return false
}

// Job statuses
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// IsTerminal reports whether no further transition may leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusError
}

// CanTransition reports whether a job in status s may move to next.
// running -> running is a progress update and is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusQueued || next == JobStatusRunning
	case JobStatusRunning:
		return next == JobStatusRunning || next == JobStatusDone || next == JobStatusError
	}
	return false
}

// Asset kinds
type AssetKind string

const (
	AssetKindMIDI  AssetKind = "midi"
	AssetKindWAV   AssetKind = "wav"
	AssetKindVideo AssetKind = "video"
	AssetKindImage AssetKind = "image"
)

// Voice profile locales
type Locale string

const (
	LocaleBengali Locale = "bn"
	LocaleHindi   Locale = "hi"
	LocaleEnglish Locale = "en"
)

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool {
	switch l {
	case LocaleBengali, LocaleHindi, LocaleEnglish:
		return true
	}
	return false
}
