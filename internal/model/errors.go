package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure classifications used across the
// pipeline. Retry decisions key off the kind, never off error text.
type ErrorKind string

const (
	ErrSourceUnavailable     ErrorKind = "source_unavailable"
	ErrMalformedSource       ErrorKind = "malformed_source"
	ErrValidationDefect      ErrorKind = "validation_defect"
	ErrSinkTransient         ErrorKind = "sink_transient"
	ErrSinkRejected          ErrorKind = "sink_rejected"
	ErrRetriesExhausted      ErrorKind = "retries_exhausted"
	ErrCancellationRequested ErrorKind = "cancellation_requested"
)

// PipelineError attaches a kind and the originating stage to an error.
type PipelineError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Stage == "" && e.Err == nil:
		return string(e.Kind)
	case e.Stage == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the stage it occurred in.
func NewError(kind ErrorKind, stage string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the classification carried by err, if any.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// Retryable reports whether err may be retried. Unclassified errors are
// treated as fatal.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case ErrSourceUnavailable, ErrSinkTransient:
		return true
	}
	return false
}
