// Package xdgerr classifies internal errors into the small set of outcomes
// the bus surface understands, without importing the bus library itself -
// the dispatch shell (internal/portal) is the only place that turns a Kind
// into a wire error name.
package xdgerr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed, per spec.md §7.
type Kind int

const (
	// KindFailed is the generic internal-error fallback.
	KindFailed Kind = iota
	KindNotAllowed
	KindNotFound
	KindExists
	KindNoFile
	KindNotWritten
	KindInvalidArgument
	KindOperationsPending
)

// names maps each Kind to the suffix used in
// "org.freedesktop.portal.document.<suffix>".
var names = map[Kind]string{
	KindFailed:            "Failed",
	KindNotAllowed:        "NotAllowed",
	KindNotFound:          "NotFound",
	KindExists:            "Exists",
	KindNoFile:            "NoFile",
	KindNotWritten:        "NotWritten",
	KindInvalidArgument:   "InvalidArgument",
	KindOperationsPending: "OperationsPending",
}

// Name returns the bus error name suffix for this kind, e.g. "NotAllowed".
func (k Kind) Name() string {
	if n, ok := names[k]; ok {
		return n
	}

	return names[KindFailed]
}

// Error is an internal error tagged with the Kind that should be surfaced to
// the bus caller.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error with no underlying cause.
func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an existing error, preserving it for errors.Is/As and logging.
func Wrap(kind Kind, message string, cause error) error {
	if cause == nil {
		return New(kind, message)
	}

	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindFailed if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindFailed
}
