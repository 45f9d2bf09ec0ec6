// Package daemon coordinates the background services behind the overdub
// worker process: the stage pipeline, the expiry sweeper, and a file lock
// that enforces single-instance execution.
package daemon
