// Package transcribe implements the transcribing stage. Success lands the
// job in the transcribing_done pause state, where it waits for the user to
// review the transcript and finalize their selection.
package transcribe
