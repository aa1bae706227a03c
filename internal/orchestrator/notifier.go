package orchestrator

import "github.com/makeasinger/studio/internal/model"

// Notifier receives job events as they are written. Implementations must
// not block.
type Notifier interface {
	Progress(jobID string, progress int, status model.JobStatus, message string)
	Complete(jobID string, result map[string]any)
	Failed(jobID, message string)
}

type nopNotifier struct{}

func (nopNotifier) Progress(string, int, model.JobStatus, string) {}
func (nopNotifier) Complete(string, map[string]any)               {}
func (nopNotifier) Failed(string, string)                         {}
