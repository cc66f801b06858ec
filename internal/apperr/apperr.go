// Package apperr classifies failures so handlers can decide between an inline
// message, a redirect, or an error page.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation is a local pre-flight failure; no remote call was made.
	KindValidation Kind = "validation"
	// KindRejection means the remote API answered with a non-success payload.
	KindRejection Kind = "rejection"
	// KindTransport covers network errors and timeouts.
	KindTransport Kind = "transport"
	KindStorage   Kind = "storage"
	// KindStale marks a response that arrived for a flow the user already left.
	KindStale   Kind = "stale"
	KindUnknown Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches a kind to err. Errors that are already typed keep their kind.
func Wrap(kind Kind, op, message string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether any error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// UserMessage returns the text shown to the user for err.
func UserMessage(err error) string {
	var target *Error
	if errors.As(err, &target) && target.Message != "" {
		return target.Message
	}
	return "Something went wrong. Please try again later."
}
