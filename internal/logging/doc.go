// Package logging constructs the slog loggers used across overdub and
// provides the shared attribute helpers and context plumbing that keep
// job and stage identifiers attached to every record.
package logging
