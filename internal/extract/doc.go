// Package extract implements the extracting stage: it pulls a mono 16 kHz
// WAV track out of the staged media with ffmpeg, which is the input format
// the transcription service expects.
package extract
