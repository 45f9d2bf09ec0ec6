// Package main hosts the overdub CLI entrypoint and command graph.
//
// The Cobra-based command tree covers queueing media, reviewing transcripts,
// finalizing selections, credit accounting, configuration scaffolding, and
// running the pipeline daemon in the foreground. Commands operate directly on
// the shared SQLite job store; WAL mode keeps the CLI and daemon safe side by
// side.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
