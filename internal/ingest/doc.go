// Package ingest implements the uploading stage: it stages the source file
// into the job's working directory and probes it to learn duration, size,
// and whether it carries video.
package ingest
