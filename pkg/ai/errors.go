package ai

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies why a completion call produced no text.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureUpstream  FailureKind = "upstream"
)

// CompletionError is returned by every CompletionClient failure.
type CompletionError struct {
	Kind   FailureKind
	Status int // HTTP status for FailureUpstream, 0 otherwise
	Err    error
}

func (e *CompletionError) Error() string {
	if e.Kind == FailureUpstream && e.Status != 0 {
		return fmt.Sprintf("completion %s (status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("completion %s: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// IsFailure reports whether err is a CompletionError of the given kind.
func IsFailure(err error, kind FailureKind) bool {
	var ce *CompletionError
	return errors.As(err, &ce) && ce.Kind == kind
}

// IsCompletionError reports whether err is any CompletionError.
func IsCompletionError(err error) bool {
	var ce *CompletionError
	return errors.As(err, &ce)
}

// NewTimeout wraps err as FailureTimeout.
func NewTimeout(err error) *CompletionError {
	return &CompletionError{Kind: FailureTimeout, Err: err}
}

// NewTransport wraps err as FailureTransport.
func NewTransport(err error) *CompletionError {
	return &CompletionError{Kind: FailureTransport, Err: err}
}

// NewUpstream wraps err as FailureUpstream carrying the HTTP status.
func NewUpstream(status int, err error) *CompletionError {
	return &CompletionError{Kind: FailureUpstream, Status: status, Err: err}
}

// ClassifyContext maps deadline expiry to FailureTimeout and everything
// else to FailureTransport. Backends call it after checking for their own
// upstream error types.
func ClassifyContext(err error) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeout(err)
	}
	return NewTransport(err)
}
