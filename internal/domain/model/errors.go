package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies flow errors so callers can branch on the failure
// class without inspecting concrete types or message text.
type ErrorKind string

const (
	// ErrKindInvalidInput marks bad caller input caught before any I/O.
	ErrKindInvalidInput ErrorKind = "invalid_input"
	// ErrKindVersionFormat marks a prior version string that does not match
	// the format a transition requires.
	ErrKindVersionFormat ErrorKind = "version_format"
	// ErrKindBlockingPRs marks the open-PR contamination policy failure.
	// The idempotency guard keys its flag upload on this kind.
	ErrKindBlockingPRs ErrorKind = "blocking_prs"
	// ErrKindBranchMismatch marks a hotfix branch forked from the wrong base.
	ErrKindBranchMismatch ErrorKind = "branch_mismatch"
	// ErrKindStaleRun marks a re-run of a workflow that already flagged
	// blocking PRs.
	ErrKindStaleRun ErrorKind = "stale_run"
	// ErrKindTimeout marks a bounded wait that gave up, as opposed to a
	// definitive negative answer.
	ErrKindTimeout ErrorKind = "timeout"
)

// FlowError is an error tagged with an ErrorKind.
type FlowError struct {
	kind ErrorKind
	msg  string
	err  error
}

// Errorf builds a FlowError with a formatted message. A wrapped error may be
// passed via %w as with fmt.Errorf.
func Errorf(kind ErrorKind, format string, args ...any) *FlowError {
	wrapped := fmt.Errorf(format, args...)
	return &FlowError{kind: kind, msg: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

func (e *FlowError) Error() string { return e.msg }

func (e *FlowError) Unwrap() error { return e.err }

// Kind returns the error's classification.
func (e *FlowError) Kind() ErrorKind { return e.kind }

// Kind extracts the ErrorKind from err's chain, or "" when err carries none.
func Kind(err error) ErrorKind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.kind
	}
	return ""
}

// IsKind reports whether err's chain carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return Kind(err) == kind
}
