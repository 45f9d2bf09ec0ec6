// Package cluster implements the clustering stage: diarization groups the
// transcript's utterances into distinct speakers, and the stage decides
// whether translation can be skipped because the target language matches
// the detected one.
package cluster
