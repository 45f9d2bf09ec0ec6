// Package pipeline advances dubbing jobs through the configured stage
// handlers.
//
// The Manager polls the job store, claims the oldest eligible job, and feeds
// it to the handler registered for its status while a heartbeat goroutine
// keeps the claim fresh. Stale claims from crashed workers are reclaimed so
// a job resumes at the stage it was in when the worker died. Jobs parked in
// the retrying state are promoted back to their recorded stage once their
// backoff deadline passes.
//
// Jobs waiting in transcribing_done are never claimed; they stay parked until
// a user finalizes the segment selection and moves them to clustering.
package pipeline
