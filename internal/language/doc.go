// Package language normalizes and validates the language codes used for
// transcription hints and translation targets. Codes are canonicalized to
// BCP 47 base-language form, so "EN", "en-US", and "english" all resolve to
// "en".
package language
