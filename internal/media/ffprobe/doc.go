// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The dubbing pipeline uses it at intake to measure duration and size and to
// decide whether an upload carries a video stream, which determines both the
// extraction step and the cost multiplier.
package ffprobe
