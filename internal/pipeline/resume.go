package pipeline

import "overdub/internal/jobs"

// View names the screen a client should land on when resuming a session
// around an existing job.
type View string

const (
	// ViewConfiguration covers every state up to and including clustering:
	// the user's decisions are still being applied.
	ViewConfiguration View = "configuration"
	// ViewOutput covers states from translating onward: processing is in
	// the pipeline's hands and the client only watches progress.
	ViewOutput View = "output"
	// ViewFailure is the terminal failure screen offering retry or delete.
	ViewFailure View = "failure"
)

// ResumeTarget maps a job status to the view a resuming client should show.
// Retrying jobs render as output because the pipeline will pick them back up
// without user involvement.
func ResumeTarget(status jobs.Status) View {
	switch status {
	case jobs.StatusTranslating, jobs.StatusCloning,
		jobs.StatusMerging, jobs.StatusCompleted, jobs.StatusRetrying:
		return ViewOutput
	case jobs.StatusFailed:
		return ViewFailure
	default:
		return ViewConfiguration
	}
}
