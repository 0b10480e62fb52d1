package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrConflict      = errors.New("conflict")
)

// Kind identifies the classified error category carried by wrapped stage errors.
type Kind string

const (
	KindExternalTool  Kind = "external_tool"
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindTransient     Kind = "transient"
	KindConflict      Kind = "conflict"
)

// ErrorDetails is the structured view of a wrapped stage error.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type stageError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *stageError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker.Error(), detail, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.marker.Error(), detail)
}

func (e *stageError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap tags err with the provided marker and stage context. The marker should
// be one of the exported sentinel errors above; a nil marker defaults to
// ErrTransient. The result satisfies errors.Is for both the marker and err.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &stageError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// Details recovers the structured fields from a wrapped stage error. For
// errors not produced by Wrap it returns a best-effort view with the kind
// classified from sentinel matching and the message taken from Error().
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var se *stageError
	if errors.As(err, &se) {
		return ErrorDetails{
			Kind:      classify(se.marker),
			Stage:     se.stage,
			Operation: se.operation,
			Message:   buildDetail("", se.operation, se.message),
			Cause:     se.cause,
		}
	}
	return ErrorDetails{
		Kind:    classify(err),
		Message: strings.TrimSpace(err.Error()),
	}
}

// IsRetryable reports whether the queue should re-run the failed unit.
// Input errors (validation, configuration, not-found) and stale-lease
// conflicts do not improve with retries; everything else is assumed
// transient per the at-least-once design.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict):
		return false
	default:
		return true
	}
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindTransient
	}
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
