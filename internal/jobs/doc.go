// Package jobs defines the dubbing job record, its status state machine,
// and the SQLite-backed store that persists jobs across daemon restarts.
//
// A job's Status is the sole source of truth for which pipeline stage is
// active. Stage claims and advances go through compare-and-set updates so
// that at most one worker drives a job at a time, even across processes.
package jobs
