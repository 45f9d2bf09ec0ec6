package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks malformed local input: bad filters, non-positive
	// durations, chunk bound violations. Never retried.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a missing job or referenced speaker/segment.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a lost compare-and-set race; callers re-read and decide.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientCredits blocks entry into cloning; not retryable.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrTransient marks external service failures eligible for automatic retry.
	ErrTransient = errors.New("transient failure")
)

// Kind is the string classification attached to wrapped errors.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindConfiguration       Kind = "configuration"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindInsufficientCredits Kind = "insufficient_credits"
	KindTransient           Kind = "transient"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureDetails captures the classification of a stage error for logging
// and persistence.
type FailureDetails struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details derives structured failure information from a stage error.
func Details(err error) FailureDetails {
	d := FailureDetails{Kind: KindTransient, Cause: err}
	if err == nil {
		return FailureDetails{Kind: KindTransient}
	}
	switch {
	case errors.Is(err, ErrValidation):
		d.Kind = KindValidation
	case errors.Is(err, ErrConfiguration):
		d.Kind = KindConfiguration
	case errors.Is(err, ErrNotFound):
		d.Kind = KindNotFound
	case errors.Is(err, ErrConflict):
		d.Kind = KindConflict
	case errors.Is(err, ErrInsufficientCredits):
		d.Kind = KindInsufficientCredits
	}
	d.Message = strings.TrimSpace(err.Error())
	return d
}

// Retryable reports whether an error is eligible for automatic retry.
// Only transient external failures are; local validation, credit shortfalls,
// conflicts, and missing records are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return Details(err).Kind == KindTransient
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
